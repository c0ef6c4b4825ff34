// main.go - Shielded pool daemon.
//
// poold hosts one pool behind an HTTP/JSON API: deposits, proof-gated
// withdrawals, root history queries, plus health and metrics endpoints.
// State is snapshotted to disk after every accepted operation so a
// restart resumes with the same tree position, root window and spent
// nullifiers.
package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"shieldedpool/internal/feed"
	"shieldedpool/internal/pool"
	"shieldedpool/internal/verifier"
)

const version = "1.0.0"

type server struct {
	config  *Config
	logger  *Logger
	metrics *MetricsCollector
	health  *HealthChecker
	limiter *CallerRateLimiter

	bank *pool.Bank
	pool *pool.Pool
}

func main() {
	configPath := "poold.json"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	auditPath := ""
	if config.EnableAudit {
		auditPath = config.AuditLogPath
	}
	logger, err := NewLogger(config.LogLevel, config.LogFile, auditPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	srv := &server{
		config:  config,
		logger:  logger,
		metrics: NewMetricsCollector(),
		health:  NewHealthChecker(version),
		limiter: NewCallerRateLimiter(config.RateLimitTokens, config.RateLimitRefill,
			time.Duration(config.RateLimitSeconds)*time.Second),
		bank: pool.NewBank(),
	}

	v, verifierID, err := buildVerifier(config, logger)
	if err != nil {
		logger.Fatal("verifier setup failed: %v", err)
	}

	srv.pool, err = loadOrInitPool(config, srv.bank, v, verifierID, logger)
	if err != nil {
		logger.Fatal("pool setup failed: %v", err)
	}

	srv.health.RegisterCheck("state_file", func() error {
		dir := filepath.Dir(config.StatePath)
		_, err := os.Stat(dir)
		return err
	})
	srv.health.RegisterCheck("root_history", func() error {
		if !srv.pool.IsKnownRoot(srv.pool.CurrentRoot()) {
			return errors.New("current root missing from history")
		}
		return nil
	})

	if config.FeedAddr != "" {
		var wg sync.WaitGroup
		node := feed.NewNode("pool", config.FeedAddr, config.FeedPeers, &wg)
		ready := make(chan struct{}, 1)
		node.StartServer(ready)
		<-ready
		defer node.Close()
		srv.pool.SetEventSink(feed.NewPublisher(node))
		logger.Info("event feed publishing on %s to %d peers", config.FeedAddr, len(config.FeedPeers))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/deposit", srv.handleDeposit)
	mux.HandleFunc("/withdraw", srv.handleWithdraw)
	mux.HandleFunc("/roots", srv.handleRoots)
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/metrics", srv.handleMetrics)
	if config.EnableFaucet {
		mux.HandleFunc("/faucet", srv.handleFaucet)
		logger.Warn("faucet endpoint enabled; do not expose this instance")
	}

	httpServer := &http.Server{
		Addr:         config.ListenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("poold %s listening on %s", version, config.ListenAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	httpServer.Close()
	if err := srv.pool.SaveToFile(config.StatePath); err != nil {
		logger.Error("final state save failed: %v", err)
	}
}

// buildVerifier wires the configured proof backend and derives its
// identity. The Groth16 identity is the hash of the verifying key, so a
// key rotation changes the pool's expected verifier.
func buildVerifier(config *Config, logger *Logger) (pool.Verifier, pool.Identity, error) {
	if config.MockVerifier {
		logger.Warn("mock verifier enabled; all proofs will be accepted")
		return &verifier.Mock{}, pool.Identity(sha256.Sum256([]byte("mock-verifier"))), nil
	}

	if err := os.MkdirAll(config.KeyDir, 0755); err != nil {
		return nil, pool.Identity{}, err
	}
	ccs, err := verifier.Compile()
	if err != nil {
		return nil, pool.Identity{}, fmt.Errorf("circuit compilation: %w", err)
	}
	pkPath := filepath.Join(config.KeyDir, "withdraw.pk")
	vkPath := filepath.Join(config.KeyDir, "withdraw.vk")
	_, vk, err := verifier.SetupOrLoadKeys(ccs, pkPath, vkPath)
	if err != nil {
		return nil, pool.Identity{}, fmt.Errorf("key setup: %w", err)
	}

	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return nil, pool.Identity{}, err
	}
	id := pool.Identity(sha256.Sum256(buf.Bytes()))
	logger.Info("Groth16 verifier ready, id %s", id)
	return verifier.NewGroth16(vk), id, nil
}

// loadOrInitPool restores the snapshot at StatePath or initializes a
// fresh pool when none exists.
func loadOrInitPool(config *Config, bank *pool.Bank, v pool.Verifier, verifierID pool.Identity, logger *Logger) (*pool.Pool, error) {
	if _, err := os.Stat(config.StatePath); err == nil {
		p, err := pool.LoadFromFile(config.StatePath, bank, v)
		if err != nil {
			return nil, fmt.Errorf("corrupt state file %s: %w", config.StatePath, err)
		}
		if p.VerifierID != verifierID {
			logger.Warn("verifier id changed since snapshot (was %s, now %s); withdrawals bound to the old id will fail",
				p.VerifierID, verifierID)
		}
		logger.Info("restored pool: %d leaves, %d nullifiers spent", p.NextLeafIndex, p.Nullifiers.Len())
		return p, nil
	}

	authority, err := authorityIdentity(config.Authority)
	if err != nil {
		return nil, err
	}
	p := pool.Initialize(authority, verifierID, v, bank)
	if err := p.SaveToFile(config.StatePath); err != nil {
		return nil, err
	}
	logger.Info("initialized pool %s, vault %s", p.Address, p.Vault)
	return p, nil
}

func authorityIdentity(hexID string) (pool.Identity, error) {
	if hexID == "" {
		return pool.Identity(sha256.Sum256([]byte("pool-authority"))), nil
	}
	var id pool.Identity
	if err := id.UnmarshalText([]byte(hexID)); err != nil {
		return pool.Identity{}, fmt.Errorf("invalid authority: %w", err)
	}
	return id, nil
}

// depositRequest is the wire form of POST /deposit.
type depositRequest struct {
	Depositor  pool.Identity `json:"depositor"`
	Commitment pool.Bytes32  `json:"commitment"`
	NewRoot    pool.Bytes32  `json:"new_root"`
	Amount     uint64        `json:"amount"`
}

func (s *server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.limiter.Allow(r.RemoteAddr) {
		s.metrics.RecordRejection("rate_limited")
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ev, err := s.pool.Deposit(req.Depositor, req.Commitment, req.NewRoot, req.Amount)
	if err != nil {
		s.rejectOp(w, "deposit", err)
		return
	}

	s.metrics.RecordDeposit()
	s.metrics.SetGauge("vault_balance", float64(s.pool.VaultBalance()))
	s.logger.Info("deposit accepted: leaf %d, amount %d", ev.LeafIndex, req.Amount)
	s.logger.Audit("deposit", map[string]interface{}{
		"commitment": req.Commitment.String(),
		"leaf_index": ev.LeafIndex,
		"amount":     req.Amount,
	})
	s.persist()
	writeJSON(w, http.StatusOK, ev)
}

func (s *server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.limiter.Allow(r.RemoteAddr) {
		s.metrics.RecordRejection("rate_limited")
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	var req pool.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	start := time.Now()
	ev, err := s.pool.Withdraw(req)
	if err != nil {
		s.rejectOp(w, "withdraw", err)
		return
	}

	s.metrics.RecordWithdraw(time.Since(start))
	s.metrics.SetGauge("vault_balance", float64(s.pool.VaultBalance()))
	s.logger.Info("withdrawal accepted: nullifier %s, amount %d", ev.NullifierHash, req.Amount)
	s.logger.Audit("withdraw", map[string]interface{}{
		"nullifier_hash": ev.NullifierHash.String(),
		"recipient":      ev.Recipient.String(),
		"amount":         req.Amount,
	})
	s.persist()
	writeJSON(w, http.StatusOK, ev)
}

func (s *server) handleRoots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.pool.Snapshot())
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.health.CheckHealth()
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.GetMetricsSummary())
}

// faucetRequest is the wire form of POST /faucet.
type faucetRequest struct {
	Account pool.Identity `json:"account"`
	Amount  uint64        `json:"amount"`
}

func (s *server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req faucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.bank.Mint(req.Account, req.Amount)
	s.logger.Info("faucet minted %d to %s", req.Amount, req.Account)
	writeJSON(w, http.StatusOK, map[string]uint64{"balance": s.bank.Balance(req.Account)})
}

// rejectOp maps a pool error to an HTTP status, records metrics and
// replies. Protocol rejections are expected traffic and log at info.
func (s *server) rejectOp(w http.ResponseWriter, op string, err error) {
	reason, code := classifyError(err)
	s.metrics.RecordRejection(reason)
	s.logger.Info("%s rejected (%s): %v", op, reason, err)
	writeJSON(w, code, map[string]string{"error": err.Error(), "reason": reason})
}

func classifyError(err error) (string, int) {
	switch {
	case errors.Is(err, pool.ErrNullifierUsed):
		return "nullifier_used", http.StatusConflict
	case errors.Is(err, pool.ErrInvalidRoot):
		return "invalid_root", http.StatusBadRequest
	case errors.Is(err, pool.ErrRecipientMismatch):
		return "recipient_mismatch", http.StatusBadRequest
	case errors.Is(err, pool.ErrInvalidVerifier):
		return "invalid_verifier", http.StatusBadRequest
	case errors.Is(err, pool.ErrDepositTooSmall):
		return "deposit_too_small", http.StatusBadRequest
	case errors.Is(err, pool.ErrTreeFull):
		return "tree_full", http.StatusConflict
	case errors.Is(err, pool.ErrNullifierSetFull):
		return "nullifier_set_full", http.StatusConflict
	case errors.Is(err, pool.ErrInsufficientVaultBalance):
		return "insufficient_vault_balance", http.StatusConflict
	case errors.Is(err, pool.ErrInsufficientFunds):
		return "insufficient_funds", http.StatusConflict
	default:
		return "proof_rejected", http.StatusBadRequest
	}
}

func (s *server) persist() {
	if err := s.pool.SaveToFile(s.config.StatePath); err != nil {
		s.logger.Error("state save failed: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
