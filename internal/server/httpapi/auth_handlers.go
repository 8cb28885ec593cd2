package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/ticketkeeper/internal/server/models"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/services"
)

type registerRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	IsDistributor bool   `json:"isDistributor"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type codeRequest struct {
	Code string `json:"code"`
}

// userView never carries the password hash or the key blob.
type userView struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	WalletAddress string    `json:"walletAddress"`
	IsDistributor bool      `json:"isDistributor"`
	PhoneVerified bool      `json:"phoneVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

func newUserView(u *models.User) userView {
	return userView{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Phone:         u.Phone,
		WalletAddress: u.WalletAddress,
		IsDistributor: u.IsDistributor,
		PhoneVerified: u.PhoneVerified,
		CreatedAt:     u.CreatedAt,
	}
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	u, err := s.users.Register(r.Context(), services.RegisterInput{
		Email:         req.Email,
		Password:      req.Password,
		Name:          req.Name,
		Phone:         req.Phone,
		IsDistributor: req.IsDistributor,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newUserView(u))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	token, u, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": newUserView(u)})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Get(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(u))
}

func (s *Server) sendCode(w http.ResponseWriter, r *http.Request) {
	if err := s.users.SendVerificationCode(r.Context(), userIDFrom(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "verification code sent"})
}

func (s *Server) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Code == "" {
		s.writeError(w, r, missing("code"))
		return
	}

	if err := s.users.VerifyPhone(r.Context(), userIDFrom(r.Context()), req.Code); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "phone verified"})
}
