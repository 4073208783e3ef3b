package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/Connectors/connectors/webhook"
	"github.com/shaiso/Connectors/internal/connector"
)

// SigningOptions: параметры HMAC подписи исходящего webhook.
type SigningOptions struct {
	Secret    string
	Header    string
	Algorithm string
	Scopes    string
}

// SignRequest подписывает запрос так же, как его проверяет webhook коннектор.
//
// targetURL: полный URL вызова, включая query string.
func SignRequest(targetURL string, req *WebhookRequest, opts SigningOptions) error {
	scopes, err := webhook.ParseScopes(opts.Scopes)
	if err != nil {
		return err
	}

	params := make(map[string]string, len(req.Query))
	for k, v := range req.Query {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	data := webhook.SignedData(connector.WebhookPayload{
		RequestURL: targetURL,
		Method:     method,
		Params:     params,
		RawBody:    req.Body,
	}, scopes)

	signature, err := webhook.Sign(webhook.Algorithm(opts.Algorithm), opts.Secret, data)
	if err != nil {
		return err
	}

	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	req.Headers[opts.Header] = signature
	return nil
}

// NewWebhookCmd создаёт группу команд для вызова webhooks.
func NewWebhookCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Call inbound webhooks",
	}

	cmd.AddCommand(newWebhookSendCmd(clientFn, outputFn))

	return cmd
}

func newWebhookSendCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		method   string
		data     string
		dataFile string
		headers  []string
		query    []string
		signing  SigningOptions
	)

	cmd := &cobra.Command{
		Use:   "send CONTEXT",
		Short: "Send a request to the webhook registered under CONTEXT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := WebhookRequest{Method: strings.ToUpper(method)}

			body, err := readData(data, dataFile)
			if err != nil {
				return err
			}
			req.Body = body

			req.Headers, err = parsePairs(headers, ":")
			if err != nil {
				return fmt.Errorf("invalid --header: %w", err)
			}
			pairs, err := parsePairs(query, "=")
			if err != nil {
				return fmt.Errorf("invalid --query: %w", err)
			}
			req.Query = url.Values{}
			for k, v := range pairs {
				req.Query.Set(k, v)
			}

			if signing.Secret != "" {
				target := client.WebhookURL(args[0])
				if len(req.Query) > 0 {
					target += "?" + req.Query.Encode()
				}
				if err := SignRequest(target, &req, signing); err != nil {
					return err
				}
			}

			resp, err := client.SendWebhook(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
			out.Raw(resp.Body)
			if resp.StatusCode >= 400 {
				return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", http.MethodPost, "HTTP method")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Request body")
	cmd.Flags().StringVar(&dataFile, "data-file", "", "Read the request body from a file")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "Query parameter as key=value (repeatable)")
	addSigningFlags(cmd, &signing)
	cmd.MarkFlagsMutuallyExclusive("data", "data-file")

	return cmd
}

// NewHMACCmd создаёт группу команд для работы с HMAC подписями.
func NewHMACCmd(outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hmac",
		Short: "Compute webhook HMAC signatures",
	}

	var (
		data     string
		dataFile string
		signing  SigningOptions
	)

	sign := &cobra.Command{
		Use:   "sign",
		Short: "Print the hex HMAC signature of the given data",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			body, err := readData(data, dataFile)
			if err != nil {
				return err
			}

			signature, err := webhook.Sign(webhook.Algorithm(signing.Algorithm), signing.Secret, body)
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ALGORITHM", "SIGNATURE"},
				[][]string{{signing.Algorithm, signature}},
				map[string]string{"algorithm": signing.Algorithm, "signature": signature},
			)
			return nil
		},
	}

	sign.Flags().StringVarP(&data, "data", "d", "", "Data to sign")
	sign.Flags().StringVar(&dataFile, "data-file", "", "Read the data to sign from a file")
	sign.Flags().StringVar(&signing.Secret, "secret", "", "HMAC secret (required)")
	sign.Flags().StringVar(&signing.Algorithm, "algorithm", string(webhook.SHA256), "sha_1, sha_256 or sha_512")
	sign.MarkFlagRequired("secret")
	sign.MarkFlagsMutuallyExclusive("data", "data-file")

	cmd.AddCommand(sign)
	return cmd
}

func addSigningFlags(cmd *cobra.Command, opts *SigningOptions) {
	cmd.Flags().StringVar(&opts.Secret, "hmac-secret", "", "Sign the request with this HMAC secret")
	cmd.Flags().StringVar(&opts.Header, "hmac-header", "X-Signature", "Header carrying the signature")
	cmd.Flags().StringVar(&opts.Algorithm, "hmac-algorithm", string(webhook.SHA256), "sha_1, sha_256 or sha_512")
	cmd.Flags().StringVar(&opts.Scopes, "hmac-scopes", "", "Signed request parts, e.g. BODY or URL,PARAMETERS")
}

func readData(data, file string) ([]byte, error) {
	if file == "" {
		if data == "" {
			return nil, nil
		}
		return []byte(data), nil
	}
	if file == "-" {
		file = os.Stdin.Name()
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return b, nil
}

// parsePairs разбирает "key<sep>value" в map.
func parsePairs(items []string, sep string) (map[string]string, error) {
	out := make(map[string]string, len(items))
	for _, item := range items {
		k, v, ok := strings.Cut(item, sep)
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key%svalue, got %s", sep, strconv.Quote(item))
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
