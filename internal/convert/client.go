package convert

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/ppiankov/finstate/internal/cache"
	"github.com/ppiankov/finstate/internal/model"
	"github.com/ppiankov/finstate/internal/util"
)

// bodySnippet bounds how much of a failed response is logged
const bodySnippet = 200

// Waiter gates outbound requests
type Waiter interface {
	Wait(ctx context.Context) error
}

// Options configures a Client
type Options struct {
	Endpoint          string
	Token             string
	UserAgent         string
	Timeout           time.Duration
	MaxBodyBytes      int64
	HTTPProxy         string
	HTTPSProxy        string
	ReferenceTemplate string
	Cache             cache.Cache   // nil disables the response memo
	CacheTTL          time.Duration // 0 uses the cache default
	Waiter            Waiter        // nil means no request ceiling
	Log               logrus.FieldLogger
}

// Client obtains conversion results from the remote service.
// Both strategies are stateless and attempted at most once per call.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	userAgent  string
	maxBytes   int64
	referencer *Referencer
	cache      cache.Cache
	cacheTTL   time.Duration
	waiter     Waiter
	log        logrus.FieldLogger
}

// NewClient creates a Client
func NewClient(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("conversion endpoint is required")
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("conversion API token is required")
	}

	referencer, err := NewReferencer(opts.ReferenceTemplate)
	if err != nil {
		return nil, err
	}

	transport, err := util.NewTransport(opts.HTTPProxy, opts.HTTPSProxy)
	if err != nil {
		return nil, err
	}

	maxBytes := opts.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}

	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		endpoint:   opts.Endpoint,
		token:      opts.Token,
		userAgent:  opts.UserAgent,
		maxBytes:   maxBytes,
		referencer: referencer,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		waiter:     opts.Waiter,
		log:        log,
	}, nil
}

// ConvertByReference asks the service to fetch and convert the document at
// its derived remote URL.
func (c *Client) ConvertByReference(ctx context.Context, doc model.SourceDocument) (*model.ConversionResult, error) {
	log := c.log.WithFields(logrus.Fields{
		"document": doc.ID(),
		"strategy": StrategyReference,
	})

	ref, err := c.referencer.Reference(doc.Meta)
	if err != nil {
		cerr := &Error{Kind: KindReference, Strategy: StrategyReference, Document: doc.ID(), Err: err}
		log.WithError(err).Warn("cannot derive remote reference")
		return nil, cerr
	}

	key := cache.Key(string(StrategyReference), []byte(ref))
	if res, ok := c.cached(key, StrategyReference); ok {
		log.WithField("reference", ref).Info("conversion reused from earlier request")
		return res, nil
	}

	query := url.Values{}
	query.Set("htm-url", ref)
	query.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, c.fail(log, &Error{Kind: KindTransport, Strategy: StrategyReference, Document: doc.ID(), Err: fmt.Errorf("create request: %w", err)})
	}
	req.Header.Set("Accept", "application/json")

	log.WithField("reference", ref).Info("requesting conversion")
	return c.do(ctx, req, doc, StrategyReference, key, log)
}

// ConvertByContent uploads the document itself, gzip-compressed and
// base64-encoded, for conversion.
func (c *Client) ConvertByContent(ctx context.Context, doc model.SourceDocument) (*model.ConversionResult, error) {
	log := c.log.WithFields(logrus.Fields{
		"document": doc.ID(),
		"strategy": StrategyContent,
	})

	content, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, c.fail(log, &Error{Kind: KindIO, Strategy: StrategyContent, Document: doc.ID(), Err: fmt.Errorf("read document: %w", err)})
	}

	key := cache.Key(string(StrategyContent), content)
	if res, ok := c.cached(key, StrategyContent); ok {
		log.Info("conversion reused from earlier request")
		return res, nil
	}

	compressed, err := compress(content)
	if err != nil {
		return nil, c.fail(log, &Error{Kind: KindIO, Strategy: StrategyContent, Document: doc.ID(), Err: fmt.Errorf("compress document: %w", err)})
	}
	log.WithFields(logrus.Fields{
		"original_bytes":   len(content),
		"compressed_bytes": len(compressed),
	}).Info("sending compressed document")

	payload, err := json.Marshal(map[string]string{
		"html_compressed": base64.StdEncoding.EncodeToString(compressed),
		"token":           c.token,
	})
	if err != nil {
		return nil, c.fail(log, &Error{Kind: KindTransport, Strategy: StrategyContent, Document: doc.ID(), Err: fmt.Errorf("marshal payload: %w", err)})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, c.fail(log, &Error{Kind: KindTransport, Strategy: StrategyContent, Document: doc.ID(), Err: fmt.Errorf("create request: %w", err)})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Accept-Encoding", "gzip")

	return c.do(ctx, req, doc, StrategyContent, key, log)
}

func (c *Client) do(ctx context.Context, req *http.Request, doc model.SourceDocument, strategy Strategy, key string, log logrus.FieldLogger) (*model.ConversionResult, error) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	if c.waiter != nil {
		if err := c.waiter.Wait(ctx); err != nil {
			return nil, c.fail(log, &Error{Kind: KindTransport, Strategy: strategy, Document: doc.ID(), Err: fmt.Errorf("wait for pacing: %w", err)})
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(log, &Error{Kind: KindTransport, Strategy: strategy, Document: doc.ID(), Err: redact(err, c.token)})
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := readBody(resp, c.maxBytes)
	if err != nil {
		return nil, c.fail(log, &Error{Kind: KindTransport, Strategy: strategy, Document: doc.ID(), StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)})
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(log, &Error{
			Kind:       KindStatus,
			Strategy:   strategy,
			Document:   doc.ID(),
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), bodySnippet),
		})
	}

	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return nil, c.fail(log, &Error{
			Kind:       KindMalformed,
			Strategy:   strategy,
			Document:   doc.ID(),
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), bodySnippet),
			Err:        fmt.Errorf("response is not a JSON object"),
		})
	}

	if c.cache != nil {
		if err := c.cache.Set(key, body, c.cacheTTL); err != nil {
			log.WithError(err).Debug("response memo write failed")
		}
	}

	log.Info("conversion succeeded")
	return &model.ConversionResult{Raw: body, Strategy: string(strategy)}, nil
}

func (c *Client) cached(key string, strategy Strategy) (*model.ConversionResult, bool) {
	if c.cache == nil {
		return nil, false
	}
	body, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return &model.ConversionResult{Raw: body, Strategy: string(strategy)}, true
}

func (c *Client) fail(log logrus.FieldLogger, err *Error) error {
	fields := logrus.Fields{"kind": err.Kind}
	if err.StatusCode != 0 {
		fields["status"] = err.StatusCode
	}
	if err.Body != "" {
		fields["body"] = err.Body
	}
	entry := log.WithFields(fields)
	if err.Err != nil {
		entry = entry.WithError(err.Err)
	}
	entry.Error("conversion failed")
	return err
}

// readBody reads at most limit bytes, transparently inflating gzip bodies
// the transport did not already decode.
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	var r io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" && !resp.Uncompressed {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	return io.ReadAll(io.LimitReader(r, limit))
}

func compress(content []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(content); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// redact keeps the API token out of transport errors, which embed the URL
func redact(err error, token string) error {
	var uerr *url.Error
	if token == "" || !errors.As(err, &uerr) {
		return err
	}
	masked := strings.ReplaceAll(uerr.URL, url.QueryEscape(token), "REDACTED")
	return &url.Error{
		Op:  uerr.Op,
		URL: strings.ReplaceAll(masked, token, "REDACTED"),
		Err: uerr.Err,
	}
}
