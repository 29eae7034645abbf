package sms_gateway

import (
	"TextDesk/entity"
	"TextDesk/internal/lib/sl"
	"TextDesk/internal/metrics"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"log/slog"
	"net/url"
	"strconv"
	"time"
)

const (
	extensionPath = "/restapi/v1.0/account/~/extension/~"
	maxPages      = 200
)

type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	OwnNumber    string
	PageSize     int
	Timeout      time.Duration
}

// Client talks to the provider's REST API. Every call is authorized with a
// client-credentials token that is cached and refreshed by the token source.
type Client struct {
	conf   Config
	tokens oauth2.TokenSource
	http   *resty.Client
	log    *slog.Logger
}

func New(conf Config, log *slog.Logger) *Client {
	if conf.PageSize <= 0 {
		conf.PageSize = 100
	}
	if conf.Timeout <= 0 {
		conf.Timeout = 20 * time.Second
	}
	cc := &clientcredentials.Config{
		ClientID:     conf.ClientID,
		ClientSecret: conf.ClientSecret,
		TokenURL:     conf.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokens := cc.TokenSource(context.Background())

	httpClient := oauth2.NewClient(context.Background(), tokens)
	httpClient.Timeout = conf.Timeout

	return &Client{
		conf:   conf,
		tokens: tokens,
		http:   resty.NewWithClient(httpClient).SetBaseURL(conf.BaseURL),
		log:    log.With(sl.Module("sms-gateway")),
	}
}

func (c *Client) OwnNumber() string {
	return c.conf.OwnNumber
}

// ParseWebhook decodes a notification payload delivered to the webhook endpoint.
func (c *Client) ParseWebhook(data []byte) ([]entity.DecodedEvent, error) {
	return ParseWebhook(data)
}

// AccessToken returns the current bearer token, used to fetch attachment URIs.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	type result struct {
		tok *oauth2.Token
		err error
	}
	ch := make(chan result, 1)
	go func() {
		tok, err := c.tokens.Token()
		ch <- result{tok, err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("provider token: %w", r.err)
		}
		return r.tok.AccessToken, nil
	}
}

func (c *Client) observe(operation string, t time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ProviderDuration.WithLabelValues(operation, status).Observe(time.Since(t).Seconds())
}

func apiError(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	return &APIError{Status: resp.StatusCode(), Body: string(resp.Body())}
}

// ListMessages pages through the message store for SMS/MMS records created
// at or after since. Records that fail to map are logged and skipped.
func (c *Client) ListMessages(ctx context.Context, since time.Time) (events []entity.SmsEvent, err error) {
	defer func(t time.Time) { c.observe("list_messages", t, err) }(time.Now())

	log := c.log.With(slog.Time("since", since))
	for page := 1; page <= maxPages; page++ {
		var body listResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"messageType": "SMS",
				"dateFrom":    since.UTC().Format(time.RFC3339),
				"perPage":     strconv.Itoa(c.conf.PageSize),
				"page":        strconv.Itoa(page),
			}).
			SetResult(&body).
			Get(extensionPath + "/message-store")
		if err != nil {
			return events, fmt.Errorf("list messages: %w", err)
		}
		if err = apiError(resp); err != nil {
			return events, err
		}

		for _, raw := range body.Records {
			decoded := decodeRecord(raw)
			if decoded.Err != nil {
				log.With(sl.Err(decoded.Err)).Warn("skipping message record")
				continue
			}
			events = append(events, decoded.Event)
		}

		if len(body.Records) == 0 || body.Navigation.NextPage == nil {
			break
		}
		if body.Paging.TotalPages > 0 && page >= body.Paging.TotalPages {
			break
		}
	}
	log.Debug("listed messages", slog.Int("count", len(events)))
	return events, nil
}

// Send submits an outbound message. Text-only messages to one recipient go
// to the JSON SMS endpoint; everything else is a multipart MMS.
func (c *Client) Send(ctx context.Context, msg entity.OutboundMessage) (event entity.SmsEvent, err error) {
	defer func(t time.Time) { c.observe("send", t, err) }(time.Now())

	from := msg.From
	if from == "" {
		from = c.conf.OwnNumber
	}
	payload := sendRequest{
		From: party{PhoneNumber: from},
		Text: msg.Text,
	}
	for _, to := range msg.To {
		payload.To = append(payload.To, party{PhoneNumber: to})
	}

	req := c.http.R().SetContext(ctx)
	var path string
	if len(msg.Files) == 0 && len(msg.To) == 1 {
		path = extensionPath + "/sms"
		req.SetBody(payload)
	} else {
		path = extensionPath + "/mms"
		data, err := json.Marshal(payload)
		if err != nil {
			return event, fmt.Errorf("encode send request: %w", err)
		}
		req.SetMultipartField("request", "request.json", "application/json", bytes.NewReader(data))
		for _, f := range msg.Files {
			req.SetMultipartField("attachment", f.Filename, f.ContentType, bytes.NewReader(f.Data))
		}
	}

	resp, err := req.Post(path)
	if err != nil {
		return event, fmt.Errorf("send message: %w", err)
	}
	if err = apiError(resp); err != nil {
		c.log.With(sl.Err(err), slog.Int("recipients", len(msg.To))).Error("provider rejected message")
		return event, err
	}

	decoded := decodeRecord(resp.Body())
	if decoded.Err != nil {
		return event, fmt.Errorf("decode send response: %w", decoded.Err)
	}
	return decoded.Event, nil
}

// MarkRead sets the provider-side read status of one message.
func (c *Client) MarkRead(ctx context.Context, messageID string) (err error) {
	defer func(t time.Time) { c.observe("mark_read", t, err) }(time.Now())

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(readStatusRequest{ReadStatus: "Read"}).
		Put(extensionPath + "/message-store/" + url.PathEscape(messageID))
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return apiError(resp)
}
