package httpapi

import (
	"net/http"

	"github.com/skip2/go-qrcode"
)

// handleSlackInstall sends the user to Slack's OAuth v2 authorize page.
// When SLACK_INSTALL_QR is set, it instead renders the install URL as a
// scannable PNG QR code, for installs kicked off from a terminal or a
// screen without a clickable link.
func (s *Server) handleSlackInstall(w http.ResponseWriter, r *http.Request) {
	installURL := s.slack.BuildInstallURL()
	if !s.cfg.Slack.InstallQR {
		http.Redirect(w, r, installURL, http.StatusFound)
		return
	}
	png, err := qrcode.Encode(installURL, qrcode.Medium, 256)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "qr_render_failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) handleSlackOAuthRedirect(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing_code")
		return
	}
	resp, err := s.slack.ExchangeCodeForToken(r.Context(), code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.slack.StoreWorkspaceToken(resp); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "installed", "team_id": resp.Team.ID})
}
