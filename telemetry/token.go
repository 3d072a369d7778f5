package telemetry

import (
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/xhit/go-str2duration/v2"
)

// GenerateOTLPBearerToken signs token with sharedSecret. The result is
// "<token>.<signature>".
func GenerateOTLPBearerToken(sharedSecret string, token string) (string, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(sharedSecret + "." + token)); err != nil {
		return "", errors.Wrap(err, "error hashing token")
	}
	return token + "." + base64.StdEncoding.EncodeToString(hash.Sum(nil)), nil
}

// GenerateOTLPBearerTokenWithExpiration signs a token valid until expiration.
// The token is "<validity>.<issued unix>.<signature>", validity rounded to the
// minute in str2duration notation ("1h", "4w2d").
func GenerateOTLPBearerTokenWithExpiration(sharedSecret string, expiration time.Time) (string, error) {
	validity := time.Until(expiration).Round(time.Minute)
	if validity <= 0 {
		return "", errors.Newf("expiration time is in the past: %s", expiration.Format(time.RFC3339))
	}
	token := str2duration.String(validity) + "." + strconv.FormatInt(time.Now().Unix(), 10)
	return GenerateOTLPBearerToken(sharedSecret, token)
}
