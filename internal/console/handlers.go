package console

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/tgsitter/tgsitter/internal/backup"
	"github.com/tgsitter/tgsitter/internal/session"
	webassets "github.com/tgsitter/tgsitter/web"
)

// handleIndex serves the embedded single-page console.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	page, err := webassets.Files.ReadFile("index.html")
	if err != nil {
		http.Error(w, "console page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// maxUploadBytes caps session archive uploads. Session files are tiny;
// anything bigger is not a credential cache.
const maxUploadBytes = 32 << 20

type startRequest struct {
	Phone    string `json:"phone"`
	APIID    string `json:"api_id"`
	APIHash  string `json:"api_hash"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

type stopRequest struct {
	ID string `json:"id"`
}

// handleBotStart validates credentials and dispatches the handshake.
// The final outcome arrives asynchronously on the event feed; this
// endpoint only acknowledges that the attempt was initiated.
func (s *Server) handleBotStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Phone == "" || req.APIID == "" || req.APIHash == "" {
		s.writeError(w, http.StatusBadRequest, "phone, api_id and api_hash are required")
		return
	}

	cred := session.Credentials{Phone: req.Phone, APIID: req.APIID, APIHash: req.APIHash}
	if err := s.reg.StartSession(cred, req.Code, req.Password); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "initiated",
		"message": fmt.Sprintf("session start initiated for %s", cred.ID()),
	})
}

func (s *Server) handleBotStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		s.writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if err := s.reg.StopSession(req.ID); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "initiated",
		"message": fmt.Sprintf("session stop initiated for %s", req.ID),
	})
}

// handleBotStatus merges live registry state with persisted records, so
// accounts known from before a restart still show up (as not running).
func (s *Server) handleBotStatus(w http.ResponseWriter, r *http.Request) {
	infos := s.reg.List()
	if s.records != nil {
		seen := make(map[string]bool, len(infos))
		for _, info := range infos {
			seen[info.ID] = true
		}
		records, err := s.records.All(r.Context())
		if err != nil {
			s.log.Warn("session record query failed", "error", err)
		}
		for _, rec := range records {
			if !seen[rec.ID] {
				infos = append(infos, session.Info{ID: rec.ID, DisplayName: rec.DisplayName()})
			}
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": infos})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, ok := s.auth.login(req.Password)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "invalid password")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(tokenTTL),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(authCookie); err == nil {
		s.auth.logout(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: authCookie, Value: "", Path: "/", MaxAge: -1})
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sessionFileInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

func (s *Server) handleSessionList(w http.ResponseWriter, _ *http.Request) {
	entries, err := os.ReadDir(s.sessionDir)
	if err != nil && !os.IsNotExist(err) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	files := []sessionFileInfo{}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || entry.IsDir() {
			continue
		}
		files = append(files, sessionFileInfo{
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleSessionDownload(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	n, err := backup.Archive(s.sessionDir, &buf)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("session backup downloaded", "files", n)

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="sessions.zip"`)
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.Write(buf.Bytes())
}

func (s *Server) handleSessionUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("archive")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "archive file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "could not read archive")
		return
	}
	n, err := backup.Restore(bytes.NewReader(data), int64(len(data)), s.sessionDir)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Info("session backup restored", "files", n)
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "restored": n})
}
