package match

import (
	"github.com/gin-gonic/gin"
	"github.com/idater/idater-backend/internal/auth"
	"github.com/idater/idater-backend/internal/server"
)

// Registrar wires the matching routes onto the HTTP engine.
type Registrar struct {
	svc      *Service
	verifier auth.Verifier
}

func NewRegistrar(svc *Service, verifier auth.Verifier) *Registrar {
	return &Registrar{svc: svc, verifier: verifier}
}

func (r *Registrar) Register(engine *gin.Engine) {
	g := engine.Group("/user/matches", auth.Middleware(r.verifier))
	g.GET("/potential", r.potential)
	g.POST("/like/:targetUserId", r.like)
	g.POST("/dislike/:targetUserId", r.dislike)
	g.GET("", r.matches)

	engine.GET("/user/liked-you/count", auth.Middleware(r.verifier), r.likedYouCount)
}

func (r *Registrar) likedYouCount(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)
	count, err := r.svc.LikedYouCount(c.Request.Context(), principal.UserID)
	if err != nil {
		server.Fail(c, err)
		return
	}
	server.OK(c, gin.H{"count": count})
}

func (r *Registrar) potential(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)
	users, err := r.svc.FindCandidates(c.Request.Context(), principal.UserID)
	if err != nil {
		server.Fail(c, err)
		return
	}
	server.OK(c, users)
}

func (r *Registrar) like(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)
	targetID, err := server.ParamUint(c, "targetUserId")
	if err != nil {
		server.Fail(c, err)
		return
	}

	isMatch, err := r.svc.Like(c.Request.Context(), principal.UserID, targetID)
	if err != nil {
		server.Fail(c, err)
		return
	}

	message := "user liked"
	if isMatch {
		message = "it's a match"
	}
	server.OK(c, gin.H{"message": message, "isMatch": isMatch})
}

func (r *Registrar) dislike(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)
	targetID, err := server.ParamUint(c, "targetUserId")
	if err != nil {
		server.Fail(c, err)
		return
	}

	if err := r.svc.Dislike(c.Request.Context(), principal.UserID, targetID); err != nil {
		server.Fail(c, err)
		return
	}
	server.OK(c, gin.H{"message": "user disliked"})
}

func (r *Registrar) matches(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)
	users, err := r.svc.MutualMatches(c.Request.Context(), principal.UserID)
	if err != nil {
		server.Fail(c, err)
		return
	}
	server.OK(c, users)
}
