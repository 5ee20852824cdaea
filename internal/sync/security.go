package sync

import (
	"context"
	"errors"

	"github.com/prudhvinik1/peersync/internal/models"
	"github.com/prudhvinik1/peersync/internal/repositories"
	"github.com/prudhvinik1/peersync/internal/utils"
)

// Rejection reasons. These are normal outcomes, not failures: they are logged
// and counted locally but never surfaced to the remote peer, so rejected
// senders learn nothing about the allow-list or team rosters.
var (
	ErrTableNotSyncable = errors.New("table not syncable")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrNotTeamMember    = errors.New("not a team member")
)

// SecurityGate validates that a remote operation is eligible to be applied at
// all. It runs strictly before conflict resolution: an unauthorized operation
// never gets to compete for a row via LWW.
type SecurityGate struct {
	verifier   utils.Verifier
	membership repositories.MembershipChecker
}

func NewSecurityGate(verifier utils.Verifier, membership repositories.MembershipChecker) *SecurityGate {
	return &SecurityGate{verifier: verifier, membership: membership}
}

// Admit returns nil when the operation may proceed to conflict resolution, or
// one of the rejection sentinels. Checks short-circuit in order: table
// allow-list, team signature, team membership. Private-scope operations (no
// team_id) skip the team checks.
func (g *SecurityGate) Admit(ctx context.Context, op *models.SyncOperation, actingUserID string) error {
	if !IsSyncable(op.TableName) {
		return ErrTableNotSyncable
	}

	if op.TeamID == "" {
		return nil
	}

	payload, err := op.SignaturePayload()
	if err != nil {
		return ErrInvalidSignature
	}
	if !g.verifier.Verify(payload, op.Signature, op.TeamID) {
		return ErrInvalidSignature
	}

	if actingUserID != "" {
		isMember, err := g.membership.IsMember(ctx, op.TeamID, actingUserID)
		if err != nil {
			return err
		}
		if !isMember {
			return ErrNotTeamMember
		}
	}
	return nil
}
