//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/leadbot/internal/api/handlers"
	"github.com/cloo-solutions/leadbot/internal/api/middleware"
	"github.com/cloo-solutions/leadbot/internal/cache"
	"github.com/cloo-solutions/leadbot/internal/embedding"
	"github.com/cloo-solutions/leadbot/internal/index"
	"github.com/cloo-solutions/leadbot/internal/openai"
	"github.com/cloo-solutions/leadbot/internal/repository"
	"github.com/cloo-solutions/leadbot/internal/seed"
	"github.com/cloo-solutions/leadbot/internal/server"
	"github.com/cloo-solutions/leadbot/internal/service"
	"github.com/cloo-solutions/leadbot/internal/storage"
	"github.com/cloo-solutions/leadbot/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	adminToken = "e2e-admin-token"
	indexKey   = "index/faq_index.json"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	Index        *index.Index
	Completion   *scriptedCompletion
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	HTTPClient   *http.Client
}

// scriptedCompletion stands in for the completion API. Classification
// requests get a qualification when the message carries an email address.
type scriptedCompletion struct {
	reply string
	err   error
}

func (s *scriptedCompletion) Complete(ctx context.Context, req openai.CompletionRequest) (string, error) {
	last := req.Messages[len(req.Messages)-1].Content
	if strings.Contains(req.Messages[0].Content, "lead qualification") {
		if strings.Contains(last, "@") {
			return `{"is_lead": true, "name": "John", "email": "john@example.com", "interest_score": 0.9}`, nil
		}
		return `{"is_lead": false, "name": null, "email": null, "interest_score": 0.1}`, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

// SetupE2EEnv creates a full E2E test environment with containers and server.
// The document index lives in RustFS and is seeded with the built-in FAQs.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSSecretKey,
		Bucket:          "e2e-index",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	idx, err := index.Open(ctx, index.NewS3Store(s3Client, indexKey), embedding.NewHashEmbedder(384))
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	if err := idx.AddDocuments(ctx, seed.Builtin()); err != nil {
		t.Fatalf("failed to seed index: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	completion := &scriptedCompletion{reply: "We have plans starting at $29/month."}
	serverURL, serverCloser := startServer(t, pool, idx, completion, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		Index:        idx,
		Completion:   completion,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// BuildBinaries builds the leadbot and leadbotd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "leadbot-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"leadbotd", "leadbot"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunLeadbot runs the client CLI against the test server
func (e *E2ETestEnv) RunLeadbot(input string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "leadbot"), args...)
	cmd.Dir = e.BinaryDir
	cmd.Stdin = strings.NewReader(input)
	cmd.Env = append(os.Environ(),
		"LEADBOT_API_URL="+e.ServerURL,
		"LEADBOT_ADMIN_TOKEN="+adminToken,
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// RunLeadbotd runs an admin command against the test database with a file index
func (e *E2ETestEnv) RunLeadbotd(indexPath string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "leadbotd"), append(args, "--migrations", "../../migrations")...)
	cmd.Env = append(os.Environ(),
		"LEADBOT_DATABASE_URL="+e.PostgresC.ConnectionString(),
		"LEADBOT_INDEX_STORE=file",
		"LEADBOT_INDEX_PATH="+indexPath,
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	StatusCode int             `json:"-"`
	Header     http.Header     `json:"-"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body, authToken)
}

// doRequest returns the decoded envelope for every status so tests can
// assert on error responses too.
func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := APIResponse{StatusCode: resp.StatusCode, Header: resp.Header}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return &apiResp, nil
}

// startServer wires the chat stack the same way leadbotd serve does
func startServer(t *testing.T, pool *pgxpool.Pool, idx *index.Index, completion service.CompletionClient, port int) (string, func()) {
	gateway := service.NewGateway(completion, cache.NewMemoryCache(), service.GatewayConfig{
		Timeout:  5 * time.Second,
		CacheTTL: 10 * time.Second,
	})
	extractor := service.NewLeadExtractor(completion, 5*time.Second)

	conversationSvc := service.NewConversationService(
		repository.NewSessionRepository(pool),
		repository.NewMessageRepository(pool),
		repository.NewLeadRepository(pool),
		repository.NewTxRunner(pool),
		idx,
		gateway,
		extractor,
	)

	router := server.NewRouter(server.RouterConfig{
		ConversationHandler: handlers.NewConversationHandler(conversationSvc),
		IndexStats:          idx,
		AdminToken:          adminToken,
		RateLimit:           middleware.RateLimitConfig{},
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
