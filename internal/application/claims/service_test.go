package claims

import (
	"context"
	"testing"

	"bprd-credits/internal/application/certificates"
	"bprd-credits/internal/application/eligibility"
	"bprd-credits/internal/application/ledger"
	"bprd-credits/internal/domain"
	"bprd-credits/internal/infrastructure/database"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type claimsFixture struct {
	svc    *Service
	ledger *ledger.Service
	issuer *certificates.Service
	db     *gorm.DB
}

func setupClaimsTest(t *testing.T) *claimsFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))

	led := &ledger.Service{DB: db}
	_, _, err = led.Provision(context.Background(), ledger.ProvisionInput{StudentID: "S-1", Name: "Asha"})
	require.NoError(t, err)
	issuer := &certificates.Service{DB: db, Ledger: led, Prefix: "BPRD"}
	svc := &Service{
		DB:          db,
		Eligibility: &eligibility.Service{DB: db, Ledger: led},
		Issuer:      issuer,
	}
	return &claimsFixture{svc: svc, ledger: led, issuer: issuer, db: db}
}

func (f *claimsFixture) credit(t *testing.T, umbrella string, amount float64) {
	t.Helper()
	_, err := f.ledger.Credit(context.Background(), nil, "S-1", umbrella, amount, ledger.Event{Organization: "NPA"})
	require.NoError(t, err)
}

func TestCreate_Eligibility(t *testing.T) {
	f := setupClaimsTest(t)
	ctx := context.Background()
	f.credit(t, "Cyber_Security", 19)

	_, err := f.svc.Create(ctx, CreateInput{StudentID: "S-1", Umbrella: "Cyber Security", Qualification: "certificate"})
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

	f.credit(t, "Cyber_Security", 1)
	claim, err := f.svc.Create(ctx, CreateInput{StudentID: "S-1", Umbrella: "cyber security", Qualification: "certificate", RequestedBy: "u-1"})
	require.NoError(t, err)
	assert.Equal(t, "Cyber_Security", claim.Umbrella)
	assert.Equal(t, domain.StatusPending, claim.Status)
	assert.Equal(t, 20.0, claim.RequiredCredits)
	assert.Equal(t, 20.0, claim.SelectedCredits)
	assert.Len(t, claim.Contributions.Data(), 2)

	_, err = f.svc.Create(ctx, CreateInput{StudentID: "S-1", Umbrella: "Cyber_Security", Qualification: "diploma"})
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)
}

func TestCreate_ValidationErrors(t *testing.T) {
	f := setupClaimsTest(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateInput{StudentID: "S-1", Umbrella: "Basket Weaving", Qualification: "certificate"})
	assert.ErrorIs(t, err, domain.ErrUnknownUmbrella)
	_, err = f.svc.Create(ctx, CreateInput{StudentID: "S-1", Umbrella: "Cyber_Security", Qualification: "phd"})
	assert.ErrorIs(t, err, domain.ErrUnknownQualification)
	_, err = f.svc.Create(ctx, CreateInput{StudentID: "nobody", Umbrella: "Cyber_Security", Qualification: "certificate"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreate_RejectsDuplicateInFlight(t *testing.T) {
	f := setupClaimsTest(t)
	ctx := context.Background()
	f.credit(t, "Cyber_Security", 25)

	first, err := f.svc.Create(ctx, CreateInput{StudentID: "S-1", Umbrella: "Cyber_Security", Qualification: "certificate"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateInput{StudentID: "S-1", Umbrella: "Cyber_Security", Qualification: "certificate"})
	assert.ErrorIs(t, err, domain.ErrDuplicateClaim)

	// declining frees the slot
	_, err = f.svc.Decline(ctx, first.ClaimID, domain.RolePOC, "poc-1", "missing transcript")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateInput{StudentID: "S-1", Umbrella: "Cyber_Security", Qualification: "certificate"})
	assert.NoError(t, err)
}

func TestApprove_DualApprovalOrdering(t *testing.T) {
	f := setupClaimsTest(t)
	ctx := context.Background()
	f.credit(t, "Cyber_Security", 20)
	claim, err := f.svc.Create(ctx, CreateInput{StudentID: "S-1", Umbrella: "Cyber_Security", Qualification: "certificate"})
	require.NoError(t, err)

	poc, err := f.svc.PocQueue(ctx)
	require.NoError(t, err)
	require.Len(t, poc, 1)
	admin, err := f.svc.AdminQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, admin)

	// admin acting first: recorded, but the claim leaves the POC queue without
	// entering the admin queue or becoming approved
	res, err := f.svc.Approve(ctx, claim.ClaimID, domain.RoleAdmin, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAdminApproved, res.Claim.Status)
	assert.Nil(t, res.Certificate)

	poc, err = f.svc.PocQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, poc)
	admin, err = f.svc.AdminQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, admin)

	_, err = f.svc.Approve(ctx, claim.ClaimID, domain.RoleAdmin, "admin-1")
	assert.ErrorIs(t, err, domain.ErrAlreadyApproved)

	res, err = f.svc.Approve(ctx, claim.ClaimID, domain.RolePOC, "poc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, res.Claim.Status)
	require.NotNil(t, res.Certificate)
	assert.NotNil(t, res.Claim.FinalizedAt)
}

func TestApprove_HappyPathQueues(t *testing.T) {
	f := setupClaimsTest(t)
	ctx := context.Background()
	f.credit(t, "Cyber_Security", 20)
	claim, err := f.svc.Create(ctx, CreateInput{StudentID: "S-1", Umbrella: "Cyber_Security", Qualification: "certificate"})
	require.NoError(t, err)

	res, err := f.svc.Approve(ctx, claim.ClaimID, domain.RolePOC, "poc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPocApproved, res.Claim.Status)
	require.NotNil(t, res.Claim.PocApprovedBy)
	assert.Equal(t, "poc-1", *res.Claim.PocApprovedBy)

	admin, err := f.svc.AdminQueue(ctx)
	require.NoError(t, err)
	require.Len(t, admin, 1)
	assert.Equal(t, claim.ClaimID, admin[0].ClaimID)

	_, err = f.svc.Approve(ctx, claim.ClaimID, domain.RolePOC, "poc-1")
	assert.ErrorIs(t, err, domain.ErrAlreadyApproved)

	res, err = f.svc.Approve(ctx, claim.ClaimID, domain.RoleAdmin, "admin-1")
	require.NoError(t, err)
	require.NotNil(t, res.Certificate)
	assert.Equal(t, "BPRD_Cyber_Security_1", res.Certificate.CertificateNumber)

	_, err = f.svc.Approve(ctx, claim.ClaimID, domain.RoleAdmin, "admin-1")
	assert.ErrorIs(t, err, domain.ErrAlreadyFinalized)
	_, err = f.svc.Decline(ctx, claim.ClaimID, domain.RolePOC, "poc-1", "")
	assert.ErrorIs(t, err, domain.ErrAlreadyFinalized)
}

func TestApprove_SameUserBothRolesRejected(t *testing.T) {
	f := setupClaimsTest(t)
	ctx := context.Background()
	f.credit(t, "Cyber_Security", 20)
	claim, err := f.svc.Create(ctx, CreateInput{StudentID: "S-1", Umbrella: "Cyber_Security", Qualification: "certificate"})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, claim.ClaimID, domain.RolePOC, "super-1")
	require.NoError(t, err)
	res, err := f.svc.Approve(ctx, claim.ClaimID, domain.RoleAdmin, "super-1")
	assert.ErrorIs(t, err, domain.ErrSameApprover)
	assert.Nil(t, res)

	stored, err := f.svc.Get(ctx, claim.ClaimID)
	require.NoError(t, err)
	assert.False(t, stored.AdminApproved)
	assert.Equal(t, domain.StatusPocApproved, stored.Status)
	assert.Nil(t, stored.FinalizedAt)

	res, err = f.svc.Approve(ctx, claim.ClaimID, domain.RoleAdmin, "admin-1")
	require.NoError(t, err)
	assert.NotNil(t, res.Certificate)
}

func TestApprove_FinalizeDeclinesWhenBalanceMoved(t *testing.T) {
	f := setupClaimsTest(t)
	ctx := context.Background()
	f.credit(t, "Cyber_Security", 20)
	claim, err := f.svc.Create(ctx, CreateInput{StudentID: "S-1", Umbrella: "Cyber_Security", Qualification: "certificate"})
	require.NoError(t, err)

	require.NoError(t, f.ledger.Debit(ctx, nil, "S-1", "Cyber_Security", 5))

	_, err = f.svc.Approve(ctx, claim.ClaimID, domain.RolePOC, "poc-1")
	require.NoError(t, err)
	res, err := f.svc.Approve(ctx, claim.ClaimID, domain.RoleAdmin, "admin-1")
	assert.ErrorIs(t, err, domain.ErrInsufficientCreditsAtFinalize)
	require.NotNil(t, res)
	assert.Equal(t, domain.StatusDeclined, res.Claim.Status)

	bal, err := f.ledger.Balance(ctx, nil, "S-1", "Cyber_Security")
	require.NoError(t, err)
	assert.Equal(t, 15.0, bal)
}

func TestDecline(t *testing.T) {
	f := setupClaimsTest(t)
	ctx := context.Background()
	f.credit(t, "Cyber_Security", 20)
	claim, err := f.svc.Create(ctx, CreateInput{StudentID: "S-1", Umbrella: "Cyber_Security", Qualification: "certificate"})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, claim.ClaimID, domain.RolePOC, "poc-1")
	require.NoError(t, err)

	declined, err := f.svc.Decline(ctx, claim.ClaimID, domain.RoleAdmin, "admin-1", "  incomplete hours ")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeclined, declined.Status)
	require.NotNil(t, declined.DeclineReason)
	assert.Equal(t, "incomplete hours", *declined.DeclineReason)

	_, err = f.svc.Decline(ctx, claim.ClaimID, domain.RolePOC, "poc-1", "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.svc.Approve(ctx, claim.ClaimID, domain.RoleAdmin, "admin-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	bal, err := f.ledger.Balance(ctx, nil, "S-1", "Cyber_Security")
	require.NoError(t, err)
	assert.Equal(t, 20.0, bal)

	_, err = f.svc.Decline(ctx, uuid.New(), domain.RolePOC, "poc-1", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListAndPendingFinalize(t *testing.T) {
	f := setupClaimsTest(t)
	ctx := context.Background()
	f.credit(t, "Cyber_Security", 20)
	claim, err := f.svc.Create(ctx, CreateInput{StudentID: "S-1", Umbrella: "Cyber_Security", Qualification: "certificate"})
	require.NoError(t, err)

	// approve without an issuer so finalize is left to the retry path
	issuer := f.svc.Issuer
	f.svc.Issuer = nil
	_, err = f.svc.Approve(ctx, claim.ClaimID, domain.RolePOC, "poc-1")
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, claim.ClaimID, domain.RoleAdmin, "admin-1")
	require.NoError(t, err)

	pending, err := f.svc.PendingFinalize(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	f.svc.Issuer = issuer
	cert, err := f.svc.Finalize(ctx, claim.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, claim.ClaimID, cert.ClaimID)

	pending, err = f.svc.PendingFinalize(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	list, err := f.svc.ListByStudent(ctx, "S-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
