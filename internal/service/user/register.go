package user

import (
	"github.com/gin-gonic/gin"
	"github.com/idater/idater-backend/internal/auth"
	apperrors "github.com/idater/idater-backend/internal/errors"
	"github.com/idater/idater-backend/internal/server"
)

// Registrar wires the user directory routes onto the HTTP engine.
type Registrar struct {
	svc      *Service
	verifier auth.Verifier
	otp      auth.OTPProvider
}

// NewRegistrar creates the registrar. otp may be nil; the OTP routes register
// only when a provider is configured.
func NewRegistrar(svc *Service, verifier auth.Verifier, otp auth.OTPProvider) *Registrar {
	return &Registrar{svc: svc, verifier: verifier, otp: otp}
}

func (r *Registrar) Register(engine *gin.Engine) {
	g := engine.Group("/user", auth.Middleware(r.verifier))
	g.GET("/me", r.me)
	g.GET("/:userId/profile", r.profile)
	g.PUT("/update", r.update)
	g.GET("/profile-views", r.profileViews)
	g.POST("/coins", r.addCoins)

	if r.otp != nil {
		otp := engine.Group("/auth/otp")
		otp.POST("/send", r.sendOTP)
		otp.POST("/check", r.checkOTP)
	}
}

func (r *Registrar) me(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)
	me, err := r.svc.GetMe(c.Request.Context(), principal.UserID)
	if err != nil {
		server.Fail(c, err)
		return
	}
	server.OK(c, me)
}

func (r *Registrar) profile(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)
	targetID, err := server.ParamUint(c, "userId")
	if err != nil {
		server.Fail(c, err)
		return
	}

	profile, err := r.svc.GetProfile(c.Request.Context(), principal.UserID, targetID)
	if err != nil {
		server.Fail(c, err)
		return
	}
	server.OK(c, profile)
}

func (r *Registrar) update(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)

	var upd ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		server.Fail(c, apperrors.Validation("invalid request body"))
		return
	}

	updated, err := r.svc.UpdateProfile(c.Request.Context(), principal.UserID, upd)
	if err != nil {
		server.Fail(c, err)
		return
	}
	server.OK(c, updated)
}

func (r *Registrar) profileViews(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)
	views, err := r.svc.ProfileViews(c.Request.Context(), principal.UserID)
	if err != nil {
		server.Fail(c, err)
		return
	}
	server.OK(c, views)
}

type addCoinsRequest struct {
	Amount int64 `json:"amount"`
}

func (r *Registrar) addCoins(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)

	var req addCoinsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.Fail(c, apperrors.Validation("invalid request body"))
		return
	}

	updated, err := r.svc.AddCoins(c.Request.Context(), principal.UserID, req.Amount)
	if err != nil {
		server.Fail(c, err)
		return
	}
	server.OK(c, gin.H{"coins": updated.Coins})
}

type otpRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

func (r *Registrar) sendOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Phone == "" {
		server.Fail(c, apperrors.Validation("phone is required"))
		return
	}
	if err := r.otp.Send(c.Request.Context(), req.Phone); err != nil {
		server.Fail(c, apperrors.External("otp delivery failed", err))
		return
	}
	server.OK(c, gin.H{"message": "code sent"})
}

func (r *Registrar) checkOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Phone == "" || req.Code == "" {
		server.Fail(c, apperrors.Validation("phone and code are required"))
		return
	}
	ok, err := r.otp.Check(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		server.Fail(c, apperrors.External("otp verification failed", err))
		return
	}
	if !ok {
		server.Fail(c, apperrors.Unauthorized("invalid code"))
		return
	}
	server.OK(c, gin.H{"message": "code verified"})
}
