package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// ContextKeySession is the Gin context key of the resolved session record.
const ContextKeySession = "assessment_session"

// ResolveInvitation looks up the session behind the :token parameter and
// stores it on the context. Unknown tokens are rejected with 404.
func ResolveInvitation(svc *service.AssessmentService, log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "invitation_resolver").Logger()
	return func(c *gin.Context) {
		rec, err := svc.Resolve(c.Request.Context(), c.Param("token"))
		if err != nil {
			if errors.Is(err, service.ErrInvitationNotFound) {
				response.AbortFail(c, http.StatusNotFound, response.ErrInvitationNotFound)
				return
			}
			log.Error().Err(err).Msg("Resolve invitation failed")
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		c.Set(ContextKeySession, rec)
		c.Next()
	}
}

// GetSession returns the session stored by ResolveInvitation, or nil.
func GetSession(c *gin.Context) *model.SessionRecord {
	v, ok := c.Get(ContextKeySession)
	if !ok {
		return nil
	}
	rec, _ := v.(*model.SessionRecord)
	return rec
}
