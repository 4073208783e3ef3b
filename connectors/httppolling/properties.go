package httppolling

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	httpconn "github.com/shaiso/Connectors/connectors/http"
	"github.com/shaiso/Connectors/internal/domain"
)

const defaultInterval = 50 * time.Second

// cronParser принимает стандартные выражения и дескрипторы вида @every 1m.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Properties: свойства коннектора после Unflatten. Все значения строковые.
type Properties struct {
	Inbound struct {
		URL             string                  `json:"url"`
		Method          string                  `json:"method"`
		Headers         string                  `json:"headers"`
		QueryParameters string                  `json:"queryParameters"`
		Body            string                  `json:"body"`
		Authentication  httpconn.Authentication `json:"authentication"`
		Timeout         string                  `json:"connectionTimeoutInSeconds"`
		Interval        string                  `json:"httpRequestInterval"`
		Cron            string                  `json:"cron"`
	} `json:"inbound"`
}

// Validate проверяет свойства.
func (p *Properties) Validate() error {
	if p.Inbound.Interval != "" && p.Inbound.Cron != "" {
		return errors.New("inbound.cron and inbound.httpRequestInterval are mutually exclusive")
	}
	if _, err := p.schedule(); err != nil {
		return err
	}
	req, err := p.request()
	if err != nil {
		return err
	}
	return req.Validate()
}

// schedule возвращает расписание опроса.
func (p *Properties) schedule() (cron.Schedule, error) {
	if expr := strings.TrimSpace(p.Inbound.Cron); expr != "" {
		s, err := cronParser.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}
		return s, nil
	}

	interval := defaultInterval
	if p.Inbound.Interval != "" {
		d, err := domain.ParseISODuration(p.Inbound.Interval)
		if err != nil {
			return nil, fmt.Errorf("inbound.httpRequestInterval: %w", err)
		}
		if d <= 0 {
			return nil, errors.New("inbound.httpRequestInterval must be positive")
		}
		interval = d
	}
	return cron.Every(interval), nil
}

// request собирает запрос коннектора REST из строковых свойств.
func (p *Properties) request() (*httpconn.Request, error) {
	in := p.Inbound
	req := &httpconn.Request{
		Method:         in.Method,
		URL:            in.URL,
		Authentication: in.Authentication,
	}
	if in.Timeout != "" {
		req.ConnectionTimeoutInSeconds = in.Timeout
	}

	if err := decodeMap(in.Headers, &req.Headers); err != nil {
		return nil, fmt.Errorf("inbound.headers: %w", err)
	}
	if err := decodeMap(in.QueryParameters, &req.QueryParameters); err != nil {
		return nil, fmt.Errorf("inbound.queryParameters: %w", err)
	}

	if body := strings.TrimSpace(in.Body); body != "" {
		var v any
		if err := json.Unmarshal([]byte(body), &v); err != nil {
			v = in.Body
		}
		req.Body = v
	}
	return req, nil
}

func decodeMap(raw string, dst *map[string]string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}
