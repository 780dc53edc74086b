package es

import (
	"bytes"
	"docflow/session"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"strings"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/elastic/go-elasticsearch/v7/estransport"
	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

var (
	IndexFunc = Index
)

var ActiveESClient *elasticsearch.Client

// Config locates the audit index cluster. MaxRetries 0 disables retries,
// a nil Transport means http.DefaultTransport.
type Config struct {
	Addresses  []string
	Username   string
	Password   string
	MaxRetries int
	Debug      bool
	Transport  http.RoundTripper
}

// ConfigFromEnv ELASTICSEARCH_URL (comma separated), ELASTICSEARCH_USERNAME, ELASTICSEARCH_PASSWORD
func ConfigFromEnv() Config {
	cfg := Config{
		Username:   os.Getenv("ELASTICSEARCH_USERNAME"),
		Password:   os.Getenv("ELASTICSEARCH_PASSWORD"),
		MaxRetries: 3,
		Debug:      os.Getenv("GIN_MODE") == "debug",
	}
	for _, address := range strings.Split(os.Getenv("ELASTICSEARCH_URL"), ",") {
		if address = strings.TrimSpace(address); address != "" {
			cfg.Addresses = append(cfg.Addresses, address)
		}
	}
	return cfg
}

// Enabled reports whether an elasticsearch endpoint is configured.
func Enabled() bool {
	return len(ConfigFromEnv().Addresses) > 0
}

// NewClient builds a client whose requests join the caller's trace.
func NewClient(cfg Config) (*elasticsearch.Client, error) {
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	conf := elasticsearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		Transport:    &TracingTransport{Transport: transport},
		DisableRetry: cfg.MaxRetries <= 0,
		MaxRetries:   cfg.MaxRetries,
	}
	if cfg.Debug {
		conf.Logger = &estransport.TextLogger{Output: os.Stdout, EnableRequestBody: true, EnableResponseBody: true}
	}
	return elasticsearch.NewClient(conf)
}

// CreateClientFromEnv creates the client and makes it the active one.
func CreateClientFromEnv() (*elasticsearch.Client, error) {
	cfg := ConfigFromEnv()
	// the client reads ELASTICSEARCH_URL on its own and refuses explicit addresses next to it
	cfg.Addresses = nil
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	ActiveESClient = client
	return client, nil
}

// Index stores doc under id, replacing an earlier copy.
func Index(index string, id types.ID, doc interface{}, s *session.Session) error {
	if ActiveESClient == nil {
		return fmt.Errorf("elasticsearch client is not configured")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: id.String(),
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(s.Context, ActiveESClient)
	if err != nil {
		return fmt.Errorf("index %s/%s: %w", index, id, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		reason, _ := ioutil.ReadAll(res.Body)
		return fmt.Errorf("index %s/%s rejected with status %d: %s", index, id, res.StatusCode, reason)
	}
	logrus.WithFields(logrus.Fields{"index": index, "id": id}).Debug("document indexed")
	return nil
}
