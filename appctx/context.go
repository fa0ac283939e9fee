package appctx

import (
	"context"

	"hdbackend/models"
)

// Context key for storing the authenticated operator
type contextKey string

const OperatorContextKey contextKey = "operator"

// SetOperator adds the authenticated agent to the request context
func SetOperator(ctx context.Context, agent *models.Agent) context.Context {
	return context.WithValue(ctx, OperatorContextKey, agent)
}

// GetOperator extracts the authenticated agent from the request context
func GetOperator(ctx context.Context) (*models.Agent, bool) {
	agent, ok := ctx.Value(OperatorContextKey).(*models.Agent)
	return agent, ok
}
