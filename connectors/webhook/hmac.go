package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"net/http"
	"sort"
	"strings"

	"github.com/shaiso/Connectors/internal/connector"
)

// Algorithm: алгоритм HMAC подписи.
type Algorithm string

const (
	SHA1   Algorithm = "sha_1"
	SHA256 Algorithm = "sha_256"
	SHA512 Algorithm = "sha_512"
)

func (a Algorithm) hash() (func() hash.Hash, error) {
	switch Algorithm(strings.ToLower(string(a))) {
	case SHA1:
		return sha1.New, nil
	case SHA256, "":
		return sha256.New, nil
	case SHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("%w: unsupported HMAC algorithm %q", connector.ErrInvalidConfig, a)
	}
}

// Scope: часть запроса, входящая в подписываемые данные.
type Scope string

const (
	ScopeBody       Scope = "BODY"
	ScopeURL        Scope = "URL"
	ScopeParameters Scope = "PARAMETERS"
)

// HMACConfig: параметры проверки подписи.
type HMACConfig struct {
	Secret    string
	Header    string
	Algorithm Algorithm

	// Scopes: порядок частей запроса. Пустой список: GET → URL, иначе BODY.
	Scopes []Scope
}

// SignedData возвращает байты, которые подписывает отправитель.
func SignedData(payload connector.WebhookPayload, scopes []Scope) []byte {
	if len(scopes) == 0 {
		if strings.EqualFold(payload.Method, http.MethodGet) {
			scopes = []Scope{ScopeURL}
		} else {
			scopes = []Scope{ScopeBody}
		}
	}

	var out []byte
	for _, scope := range scopes {
		switch scope {
		case ScopeBody:
			out = append(out, payload.RawBody...)
		case ScopeURL:
			out = append(out, payload.RequestURL...)
		case ScopeParameters:
			out = append(out, sortedParameters(payload.Params)...)
		}
	}
	return out
}

func sortedParameters(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// Sign вычисляет HMAC от data и возвращает его в hex.
func Sign(alg Algorithm, secret string, data []byte) (string, error) {
	sum, err := mac(alg, secret, data)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

func mac(alg Algorithm, secret string, data []byte) ([]byte, error) {
	h, err := alg.hash()
	if err != nil {
		return nil, err
	}
	m := hmac.New(h, []byte(secret))
	m.Write(data)
	return m.Sum(nil), nil
}

// VerifyHMAC сравнивает подпись из заголовка с вычисленной.
//
// Подпись принимается в hex, в hex с префиксом алгоритма ("sha256=...")
// и в base64. Несовпадение даёт SecurityError с INVALID_SIGNATURE.
func VerifyHMAC(payload connector.WebhookPayload, cfg HMACConfig) error {
	signature := headerValue(payload.Headers, cfg.Header)
	if signature == "" {
		return connector.NewSecurityError(connector.ReasonInvalidSignature, "missing HMAC signature header "+cfg.Header)
	}

	expected, err := mac(cfg.Algorithm, cfg.Secret, SignedData(payload, cfg.Scopes))
	if err != nil {
		return err
	}

	for _, candidate := range decodeSignature(signature) {
		if hmac.Equal(candidate, expected) {
			return nil
		}
	}
	return connector.NewSecurityError(connector.ReasonInvalidSignature, "HMAC signature mismatch")
}

// decodeSignature возвращает все возможные декодирования значения заголовка.
func decodeSignature(signature string) [][]byte {
	signature = strings.TrimSpace(signature)
	if i := strings.Index(signature, "="); i > 0 && i < len(signature)-1 && strings.HasPrefix(strings.ToLower(signature), "sha") {
		signature = signature[i+1:]
	}

	var out [][]byte
	if b, err := hex.DecodeString(signature); err == nil {
		out = append(out, b)
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(signature); err == nil {
			out = append(out, b)
		}
	}
	return out
}

// headerValue ищет заголовок без учёта регистра.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// ParseScopes разбирает inbound.hmacScopes: "BODY,URL" или ["BODY","URL"].
func ParseScopes(raw string) ([]Scope, error) {
	raw = strings.Trim(strings.TrimSpace(raw), "[]")
	if raw == "" {
		return nil, nil
	}
	var out []Scope
	for _, part := range strings.Split(raw, ",") {
		s := Scope(strings.ToUpper(strings.Trim(strings.TrimSpace(part), `"'`)))
		switch s {
		case ScopeBody, ScopeURL, ScopeParameters:
			out = append(out, s)
		case "":
		default:
			return nil, fmt.Errorf("%w: unknown HMAC scope %q", connector.ErrInvalidConfig, s)
		}
	}
	return out, nil
}
