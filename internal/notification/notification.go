// Package notification is the outbound notification collaborator. All
// sends are fire-and-forget: a failed notification is logged and never
// blocks the mutation that triggered it.
package notification

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Invitation is the payload for an actor's self-service invitation.
type Invitation struct {
	PolicyID     string
	PolicyNumber string
	ActorType    string
	Email        string
	AccessToken  string
}

// Notifier is the minimum contract the core needs from a mail/SMS
// provider.
type Notifier interface {
	SendActorInvitation(ctx context.Context, inv Invitation) error
	SendIncompleteActorInfo(ctx context.Context, policyID string, actorIDs []string) error
}

// LogNotifier logs instead of sending. The default wiring until a real
// provider is configured.
type LogNotifier struct {
	Logger *zap.SugaredLogger
}

func (n *LogNotifier) SendActorInvitation(ctx context.Context, inv Invitation) error {
	n.Logger.Infow("actor invitation",
		"policy_id", inv.PolicyID, "actor_type", inv.ActorType, "email", inv.Email)
	return nil
}

func (n *LogNotifier) SendIncompleteActorInfo(ctx context.Context, policyID string, actorIDs []string) error {
	n.Logger.Infow("incomplete actor info reminder", "policy_id", policyID, "actors", actorIDs)
	return nil
}

// FireAndForget runs send on its own goroutine with a detached timeout
// context and logs the failure, if any. Callers never wait on it.
func FireAndForget(logger *zap.SugaredLogger, send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := send(ctx); err != nil {
			logger.Warnw("notification failed", "err", err)
		}
	}()
}
