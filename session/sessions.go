package session

import (
	"context"
	"docflow/bizerror"
	"strings"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

const (
	KeySession    = "Session"
	HeaderActorID = "X-Actor-Id"
)

type Session struct {
	Context  context.Context `json:"-"`
	Identity Identity        `json:"identity"`
}

type Identity struct {
	ID         types.ID `json:"id"`
	Name       string   `json:"name"`
	Role       string   `json:"role"`
	Department string   `json:"department"`
}

// IdentityResolver loads the identity of an actor id, an error aborts the request.
type IdentityResolver func(ctx context.Context, id types.ID) (*Identity, error)

func NewSession(ctx context.Context, identity Identity) *Session {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Session{Context: ctx, Identity: identity}
}

// ActorFilter identifies the acting user from the X-Actor-Id header.
// Authentication is delegated to the fronting gateway, the header is trusted as is.
func ActorFilter(resolve IdentityResolver) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		raw := strings.TrimSpace(ctx.GetHeader(HeaderActorID))
		if raw == "" {
			panic(bizerror.ErrUnauthenticated)
		}
		id, err := types.ParseID(raw)
		if err != nil {
			panic(bizerror.ErrUnauthenticated)
		}
		identity, err := resolve(ctx.Request.Context(), id)
		if err != nil || identity == nil {
			panic(bizerror.ErrUnauthenticated)
		}
		SaveSession(ctx, NewSession(ctx.Request.Context(), *identity))
		ctx.Next()
	}
}

func SaveSession(ctx *gin.Context, s *Session) {
	if s != nil && !s.Identity.ID.IsZero() {
		ctx.Set(KeySession, s)
	}
}

// ExtractSessionFromGinContext returns the request session, or an anonymous one bound to the request context.
func ExtractSessionFromGinContext(ctx *gin.Context) *Session {
	value, found := ctx.Get(KeySession)
	if found {
		if s, ok := value.(*Session); ok {
			return s
		}
	}
	var reqCtx context.Context
	if ctx.Request != nil {
		reqCtx = ctx.Request.Context()
	}
	return NewSession(reqCtx, Identity{})
}
