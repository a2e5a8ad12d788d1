package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"time"

	"github.com/dvloznov/finance-intake/internal/domain"
)

const (
	idPrefix     = "session_"
	suffixLength = 9
	base36       = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var idPattern = regexp.MustCompile(`^session_[0-9]+_[0-9a-z]{9}$`)

// Store persists analysis sessions keyed by session ID.
type Store interface {
	// Save writes the session, replacing any previous record with the same ID.
	Save(ctx context.Context, id string, s *domain.AnalysisSession) error
	// Load returns domain.ErrSessionNotFound when no record exists.
	Load(ctx context.Context, id string) (*domain.AnalysisSession, error)
}

// GenerateSessionID returns a new identifier for the current time.
func GenerateSessionID() string {
	return NewID(time.Now())
}

// NewID returns an identifier of the form session_<unix millis>_<9 base36 chars>.
func NewID(now time.Time) string {
	suffix := make([]byte, suffixLength)
	max := big.NewInt(int64(len(base36)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(fmt.Sprintf("session: reading random bytes: %v", err))
		}
		suffix[i] = base36[n.Int64()]
	}
	return idPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix)
}

// ValidSessionID reports whether id has the shape produced by NewID. Stores use it to
// reject identifiers that could escape their key space.
func ValidSessionID(id string) bool {
	return idPattern.MatchString(id)
}

func checkID(id string) error {
	if !ValidSessionID(id) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidSessionID, id)
	}
	return nil
}
