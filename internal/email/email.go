// Package email is the boundary to the verification-code collaborator.
//
// The core depends on the capability — send a code to an address, check a
// code against an address — and nothing else. Real SMTP delivery lives
// behind the Sender interface; the registration flow is indifferent to it.
package email

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"
)

// Sender is the verification collaborator consumed by the account service.
type Sender interface {
	// SendVerificationCode issues a fresh code to the address. A returned
	// error means the code could not be dispatched; registration treats
	// that as a user-visible failure, not a crash.
	SendVerificationCode(address string) error
	// VerifyCode reports whether code is the current, unexpired code for
	// the address. Consuming is implementation-defined.
	VerifyCode(address, code string) bool
}

// codeTTL is how long an issued code stays valid.
const codeTTL = 10 * time.Minute

// DevSender is an in-process Sender for development and tests: codes are
// generated, held in memory with an expiry, and written to the log instead
// of an SMTP socket.
type DevSender struct {
	mu     sync.Mutex
	codes  map[string]issuedCode
	logger *slog.Logger
}

type issuedCode struct {
	code    string
	expires time.Time
}

// NewDevSender creates an empty DevSender.
func NewDevSender(logger *slog.Logger) *DevSender {
	return &DevSender{
		codes:  make(map[string]issuedCode),
		logger: logger,
	}
}

// SendVerificationCode generates a 6-digit code for the address and "sends"
// it by logging. Re-sending replaces the previous code.
func (d *DevSender) SendVerificationCode(address string) error {
	address = strings.TrimSpace(strings.ToLower(address))
	if address == "" || !strings.Contains(address, "@") {
		return fmt.Errorf("email: invalid address")
	}

	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return fmt.Errorf("email: generating code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	d.mu.Lock()
	d.codes[address] = issuedCode{code: code, expires: time.Now().Add(codeTTL)}
	d.mu.Unlock()

	// Dev-only delivery channel. The code in the log is the whole point.
	d.logger.Info("verification code issued",
		slog.String("address", address),
		slog.String("code", code),
	)
	return nil
}

// VerifyCode checks the code and consumes it on success — a code verifies
// at most once.
func (d *DevSender) VerifyCode(address, code string) bool {
	address = strings.TrimSpace(strings.ToLower(address))

	d.mu.Lock()
	defer d.mu.Unlock()

	issued, ok := d.codes[address]
	if !ok || time.Now().After(issued.expires) || issued.code != strings.TrimSpace(code) {
		return false
	}
	delete(d.codes, address)
	return true
}
