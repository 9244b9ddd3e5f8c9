package httptransport

import (
	"net/http"

	dErrors "sigil/pkg/domain-errors"
)

type tokenRequest struct {
	GrantType   string `json:"grant_type"`
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
}

// handleToken exchanges a single-use authorization code for signed tokens.
// Unknown, expired, and replayed codes all answer with the same error.
func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req tokenRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.GrantType != "" && req.GrantType != "authorization_code" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "unsupported grant type"))
		return
	}
	if req.Code == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "code is required"))
		return
	}

	tokens, err := h.tokens.Exchange(ctx, req.Code, req.RedirectURI)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}
