package rpc

import (
	"container/list"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"rfqsettle/core/types"
	"rfqsettle/crypto"
)

const (
	// HeaderTimestamp is the unix time (seconds) the caller signed at.
	HeaderTimestamp = "X-Timestamp"
	// HeaderNonce makes every signed call unique within the skew window.
	HeaderNonce = "X-Nonce"
	// HeaderSignature carries the hex Ed25519 signature of SignaturePayload.
	HeaderSignature = "X-Signature"

	defaultSignatureSkew = 2 * time.Minute
	maxNonceLength       = 128
	nonceCapacity        = 65536
)

var (
	errMissingSignature = errors.New("missing caller signature headers")
	errSignatureSkew    = errors.New("signature timestamp outside allowed skew")
	errBadSignature     = errors.New("invalid caller signature")
	errNonceReused      = errors.New("nonce already used")
)

// SignaturePayload is the message the acting identity signs for one call.
// params are the exact bytes of the single parameter object.
func SignaturePayload(timestamp, nonce, method string, params []byte) []byte {
	return []byte(strings.Join([]string{timestamp, nonce, method, string(params)}, "\n"))
}

// SignRequest sets the caller signature headers on req.
func SignRequest(req *http.Request, key *crypto.PrivateKey, method string, params []byte, at time.Time, nonce string) {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	sig := key.Sign(SignaturePayload(timestamp, nonce, method, params))
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set(HeaderNonce, nonce)
	req.Header.Set(HeaderSignature, hex.EncodeToString(sig[:]))
}

// actorOf reads the identity named by field from the parameter object.
func actorOf(field string, params json.RawMessage) (types.Address, error) {
	var fields map[string]json.RawMessage
	if len(params) == 0 || json.Unmarshal(params, &fields) != nil {
		return types.Address{}, fmt.Errorf("%s required", field)
	}
	raw, ok := fields[field]
	if !ok {
		return types.Address{}, fmt.Errorf("%s required", field)
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return types.Address{}, fmt.Errorf("%s must be a hex string", field)
	}
	actor, err := types.ParseAddress(value)
	if err != nil {
		return types.Address{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	if actor.IsZero() {
		return types.Address{}, fmt.Errorf("%s required", field)
	}
	return actor, nil
}

type signatureVerifier interface {
	Verify(pubKey, msg, sig []byte) bool
}

// callerAuth checks that a call was signed by the identity it acts for.
// Identities are Ed25519 public keys, so the actor address is the key.
type callerAuth struct {
	verifier signatureVerifier
	skew     time.Duration
	nowFn    func() time.Time
	nonces   *nonceStore
}

func newCallerAuth(skew time.Duration, now func() time.Time) *callerAuth {
	if skew <= 0 {
		skew = defaultSignatureSkew
	}
	if now == nil {
		now = time.Now
	}
	return &callerAuth{
		verifier: crypto.Ed25519Verifier{},
		skew:     skew,
		nowFn:    now,
		nonces:   newNonceStore(2*skew, nonceCapacity),
	}
}

func (a *callerAuth) verify(r *http.Request, method string, actor types.Address, params []byte) error {
	timestamp := strings.TrimSpace(r.Header.Get(HeaderTimestamp))
	nonce := strings.TrimSpace(r.Header.Get(HeaderNonce))
	sigHex := strings.TrimSpace(r.Header.Get(HeaderSignature))
	if timestamp == "" || nonce == "" || sigHex == "" {
		return errMissingSignature
	}
	if len(nonce) > maxNonceLength {
		return fmt.Errorf("nonce exceeds %d bytes", maxNonceLength)
	}
	secs, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}
	now := a.nowFn()
	skew := now.Sub(time.Unix(secs, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > a.skew {
		return errSignatureSkew
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	if !a.verifier.Verify(actor.Bytes(), SignaturePayload(timestamp, nonce, method, params), sig) {
		return errBadSignature
	}
	if !a.nonces.Add(actor.Hex()+"|"+timestamp+"|"+nonce, now) {
		return errNonceReused
	}
	return nil
}

// nonceStore remembers recently used nonces. The oldest entries are evicted
// first once capacity is reached.
type nonceStore struct {
	ttl      time.Duration
	capacity int

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
}

type nonceEntry struct {
	key  string
	seen time.Time
}

func newNonceStore(ttl time.Duration, capacity int) *nonceStore {
	return &nonceStore{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Add records key and reports false when it was already present.
func (s *nonceStore) Add(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(now)
	if _, ok := s.entries[key]; ok {
		return false
	}
	for s.order.Len() >= s.capacity {
		s.remove(s.order.Front())
	}
	s.entries[key] = s.order.PushBack(&nonceEntry{key: key, seen: now})
	return true
}

func (s *nonceStore) prune(now time.Time) {
	cutoff := now.Add(-s.ttl)
	for front := s.order.Front(); front != nil; front = s.order.Front() {
		if front.Value.(*nonceEntry).seen.After(cutoff) {
			return
		}
		s.remove(front)
	}
}

func (s *nonceStore) remove(el *list.Element) {
	s.order.Remove(el)
	delete(s.entries, el.Value.(*nonceEntry).key)
}
