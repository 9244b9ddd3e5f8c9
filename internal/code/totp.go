package code

import (
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpMatches recomputes the expected passcode for a window of time steps
// around now and accepts any match. The skew is the configured number of
// steps either side, so slightly fast or slow authenticator clocks still
// validate.
func (p *Policy) totpMatches(secret, submitted string) (bool, error) {
	ok, err := totp.ValidateCustom(submitted, secret, p.now(), totp.ValidateOpts{
		Period:    uint(p.cfg.TOTPWindowLength.Seconds()),
		Skew:      uint(p.cfg.TOTPWindowCount),
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		// pquerna/otp reports malformed inputs as errors; a passcode that
		// cannot be parsed is simply not a match.
		return false, nil
	}
	return ok, nil
}
