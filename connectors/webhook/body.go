package webhook

import (
	"mime"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/expression"
)

// binaryTypes: типы содержимого, которые webhook не принимает.
var binaryTypes = []string{
	"application/octet-stream",
	"application/binary",
	"application/pdf",
	"application/zip",
	"image/",
	"audio/",
	"video/",
}

// parseBody разбирает тело запроса по Content-Type.
//
// JSON (включая неизвестные типы с JSON содержимым) декодируется,
// form-urlencoded превращается в объект, текст возвращается строкой.
// Пустое тело даёт пустой объект.
func parseBody(headers map[string]string, raw []byte) (any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return map[string]any{}, nil
	}

	mediaType, _, _ := mime.ParseMediaType(headerValue(headers, "Content-Type"))
	mediaType = strings.ToLower(mediaType)

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		v, err := expression.DecodeJSON(raw)
		if err != nil {
			return nil, connector.NewInputError("invalid JSON body: %v", err)
		}
		return v, nil

	case mediaType == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, connector.NewInputError("invalid form body: %v", err)
		}
		return formToMap(values), nil

	case strings.HasPrefix(mediaType, "text/"):
		return string(raw), nil
	}

	for _, prefix := range binaryTypes {
		if strings.HasPrefix(mediaType, prefix) {
			return nil, connector.NewInputError("unsupported content type %s", mediaType)
		}
	}

	// Неизвестный тип: JSON, если похоже на JSON, иначе текст
	if v, err := expression.DecodeJSON(raw); err == nil {
		return v, nil
	}
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	return nil, connector.NewInputError("unsupported binary body with content type %q", mediaType)
}

func formToMap(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) == 1 {
			out[k] = v[0]
			continue
		}
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = item
		}
		out[k] = items
	}
	return out
}
