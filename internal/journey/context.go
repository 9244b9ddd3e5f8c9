package journey

import (
	clientModel "sigil/internal/client/models"
	"sigil/internal/session/models"
	userModel "sigil/internal/user/models"
)

// EvaluationContext is everything a guard may read while resolving a
// transition. Guards never mutate it. Optional collaborators are nil when
// the journey has not reached the step that loads them.
type EvaluationContext struct {
	Session       *models.Session
	UserProfile   *userModel.User
	Client        *clientModel.Client
	ClientSession *models.ClientSession
	Authenticated bool
	ConsentGiven  bool
}
