package auth

import (
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/amoylab/hublink/internal/common/cnst"
	"github.com/amoylab/hublink/internal/common/dto"
)

// Identity is the user a session authenticates as. It is overwritten by
// each login and survives reconnects.
type Identity struct {
	UserID     dto.ID
	Credential string
}

// IsZero reports whether no user id is set.
func (i Identity) IsZero() bool {
	return i.UserID.IsZero()
}

// IdentityFromToken reads the user id from claim of a bearer JWT. The
// signature is not checked; verifying it is the backend's job.
func IdentityFromToken(token, claim string) (Identity, error) {
	if claim == "" {
		claim = "sub"
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithJSONNumber())
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("failed to parse credential: %w", err)
	}

	var id dto.ID
	switch v := claims[claim].(type) {
	case string:
		id = dto.StringID(v)
	case json.Number:
		id = dto.ParseID(v.String())
	}
	if id.IsZero() {
		return Identity{}, fmt.Errorf("%w: %s", cnst.ErrMissingClaim, claim)
	}
	return Identity{UserID: id, Credential: token}, nil
}
