package marketplace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hongminglow/bountyboard/internal/models/dto"
	"github.com/hongminglow/bountyboard/internal/uploads"
)

func TestAuthorizeAttachmentHidesOtherBounties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, _ := f.hire(t)
	key := uploads.NewKey("design.pdf")
	sub, err := f.svc.SubmitWork(ctx, f.freelancer, b.ID, dto.SubmitWorkRequest{Notes: "Mockups attached.", Attachments: []string{key}})
	require.NoError(t, err)

	require.NoError(t, f.svc.AuthorizeAttachment(ctx, f.client, sub.ID, key))
	require.NoError(t, f.svc.AuthorizeAttachment(ctx, f.freelancer, sub.ID, key))

	// outsiders cannot tell a real attachment from a missing one
	err = f.svc.AuthorizeAttachment(ctx, f.other, sub.ID, key)
	requireKind(t, err, KindNotFound)
	err = f.svc.AuthorizeAttachment(ctx, f.other, sub.ID, uploads.NewKey("missing.pdf"))
	requireKind(t, err, KindNotFound)
	err = f.svc.AuthorizeAttachment(ctx, f.client, sub.ID, uploads.NewKey("missing.pdf"))
	requireKind(t, err, KindNotFound)
}
