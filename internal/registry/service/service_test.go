package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"provenance/internal/registry/models"
	"provenance/internal/registry/store"
	"provenance/internal/registry/treasury"
	dErrors "provenance/pkg/domain-errors"
	audit "provenance/pkg/platform/audit"
	auditmemory "provenance/pkg/platform/audit/store/memory"
	"provenance/pkg/platform/audit/publisher"
	"provenance/pkg/testutil"
)

const (
	callerPrincipal    = "ST1TEST"
	authorityPrincipal = "ST2TEST"
	originPrincipal    = "ST3ORIGIN"
	ownerPrincipal     = "ST4OWNER"
	burnPrincipal      = "SP000000000000000000002Q6VF78"
)

type RegistrySuite struct {
	suite.Suite
	store    *store.Memory
	treasury *treasury.Ledger
	audits   *auditmemory.InMemoryStore
	pub      *publisher.Publisher
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.store = store.NewMemory()
	s.treasury = treasury.NewLedger()
	s.audits = auditmemory.NewInMemoryStore()
	s.pub = publisher.NewPublisher(s.audits)
	s.registry = New(s.store, s.treasury, WithAuditPublisher(s.pub))
}

func (s *RegistrySuite) TearDownTest() {
	s.pub.Close()
}

// ctx builds a call context with the standard caller at the given height.
func (s *RegistrySuite) ctx(height uint64) context.Context {
	return testutil.LedgerContext(callerPrincipal, height)
}

func hash32(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, 32)
}

func validParams(fill byte) models.RegisterParams {
	return models.RegisterParams{
		Hash:        hash32(fill),
		Origin:      originPrincipal,
		CertID:      1,
		ProductType: "organic",
		Quantity:    100,
		Location:    "FarmA",
		Currency:    "STX",
		Expiry:      100000,
		Owner:       ownerPrincipal,
		Description: "Fresh produce",
		Price:       50,
	}
}

func (s *RegistrySuite) bindAuthority() {
	s.Require().NoError(s.registry.SetAuthorityContract(s.ctx(0), authorityPrincipal))
}

// requireCode asserts that err carries exactly the given registry code.
func (s *RegistrySuite) requireCode(err error, code dErrors.Code) {
	s.Require().Error(err)
	s.Require().Truef(dErrors.HasCode(err, code),
		"expected code %d, got %d (%v)", code, dErrors.CodeOf(err), err)
}

func (s *RegistrySuite) TestRegisterBatch() {
	s.Run("registers successfully and settles the fee", func() {
		s.SetupTest()
		s.bindAuthority()

		id, err := s.registry.RegisterBatch(s.ctx(0), validParams(0x01))
		s.Require().NoError(err)
		s.Equal(uint64(0), id)

		batch, err := s.registry.GetBatch(s.ctx(0), id)
		s.Require().NoError(err)
		s.Equal(hash32(0x01), batch.Hash)
		s.Equal(originPrincipal, batch.Origin.String())
		s.Equal(uint64(0), batch.Timestamp)
		s.Equal(uint64(1), batch.CertID)
		s.True(batch.Status)
		s.Equal(models.ProductTypeOrganic, batch.ProductType)
		s.Equal(uint64(100), batch.Quantity)
		s.Equal("FarmA", batch.Location)
		s.Equal(models.CurrencySTX, batch.Currency)
		s.Equal(uint64(100000), batch.Expiry)
		s.Equal(ownerPrincipal, batch.Owner.String())
		s.Equal("Fresh produce", batch.Description)
		s.Equal(uint64(50), batch.Price)

		transfers := s.treasury.Transfers()
		s.Require().Len(transfers, 1)
		s.Equal(uint64(store.DefaultRegistrationFee), transfers[0].Amount)
		s.Equal(callerPrincipal, transfers[0].From.String())
		s.Equal(authorityPrincipal, transfers[0].To.String())
	})

	s.Run("assigns 0-based monotonic ids with no gaps", func() {
		s.SetupTest()
		s.bindAuthority()

		for i := byte(0); i < 5; i++ {
			id, err := s.registry.RegisterBatch(s.ctx(0), validParams(0x10+i))
			s.Require().NoError(err)
			s.Equal(uint64(i), id)
		}

		count, err := s.registry.GetBatchCount(s.ctx(0))
		s.Require().NoError(err)
		s.Equal(uint64(5), count)
	})

	s.Run("rejects duplicate hash and leaves the first batch intact", func() {
		s.SetupTest()
		s.bindAuthority()

		_, err := s.registry.RegisterBatch(s.ctx(0), validParams(0x01))
		s.Require().NoError(err)

		second := validParams(0x01)
		second.Origin = "ST5ORIGIN"
		second.Quantity = 200
		_, err = s.registry.RegisterBatch(s.ctx(0), second)
		s.requireCode(err, dErrors.CodeBatchAlreadyExists)

		batch, err := s.registry.GetBatch(s.ctx(0), 0)
		s.Require().NoError(err)
		s.Equal(originPrincipal, batch.Origin.String())
		s.Equal(uint64(100), batch.Quantity)

		// The failed attempt settled nothing.
		s.Len(s.treasury.Transfers(), 1)
		count, err := s.registry.GetBatchCount(s.ctx(0))
		s.Require().NoError(err)
		s.Equal(uint64(1), count)
	})

	s.Run("rejects registration without a bound authority", func() {
		s.SetupTest()

		_, err := s.registry.RegisterBatch(s.ctx(0), validParams(0x01))
		s.requireCode(err, dErrors.CodeAuthorityNotBound)
		s.Empty(s.treasury.Transfers())
	})
}

func (s *RegistrySuite) TestRegisterBatchFieldValidation() {
	cases := []struct {
		name   string
		mutate func(*models.RegisterParams)
		code   dErrors.Code
	}{
		{"short hash", func(p *models.RegisterParams) { p.Hash = bytes.Repeat([]byte{1}, 31) }, dErrors.CodeInvalidHash},
		{"long hash", func(p *models.RegisterParams) { p.Hash = bytes.Repeat([]byte{1}, 33) }, dErrors.CodeInvalidHash},
		{"burn origin", func(p *models.RegisterParams) { p.Origin = burnPrincipal }, dErrors.CodeInvalidOrigin},
		{"zero cert id", func(p *models.RegisterParams) { p.CertID = 0 }, dErrors.CodeInvalidCertID},
		{"negative cert id", func(p *models.RegisterParams) { p.CertID = -4 }, dErrors.CodeInvalidCertID},
		{"unknown product type", func(p *models.RegisterParams) { p.ProductType = "artisanal" }, dErrors.CodeInvalidProductType},
		{"zero quantity", func(p *models.RegisterParams) { p.Quantity = 0 }, dErrors.CodeInvalidQuantity},
		{"empty location", func(p *models.RegisterParams) { p.Location = "" }, dErrors.CodeInvalidLocation},
		{"oversized location", func(p *models.RegisterParams) { p.Location = string(bytes.Repeat([]byte{'a'}, 101)) }, dErrors.CodeInvalidLocation},
		{"unknown currency", func(p *models.RegisterParams) { p.Currency = "EUR" }, dErrors.CodeInvalidCurrency},
		{"expiry at current height", func(p *models.RegisterParams) { p.Expiry = 7 }, dErrors.CodeInvalidExpiry},
		{"expiry below current height", func(p *models.RegisterParams) { p.Expiry = 3 }, dErrors.CodeInvalidExpiry},
		{"burn owner", func(p *models.RegisterParams) { p.Owner = burnPrincipal }, dErrors.CodeInvalidOwner},
		{"empty description", func(p *models.RegisterParams) { p.Description = "" }, dErrors.CodeInvalidDescription},
		{"oversized description", func(p *models.RegisterParams) { p.Description = string(bytes.Repeat([]byte{'d'}, 201)) }, dErrors.CodeInvalidDescription},
		{"negative price", func(p *models.RegisterParams) { p.Price = -1 }, dErrors.CodeInvalidPrice},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.SetupTest()
			s.bindAuthority()

			p := validParams(0x01)
			tc.mutate(&p)
			_, err := s.registry.RegisterBatch(s.ctx(7), p)
			s.requireCode(err, tc.code)

			count, countErr := s.registry.GetBatchCount(s.ctx(7))
			s.Require().NoError(countErr)
			s.Equal(uint64(0), count, "failed registration must not mutate state")
			s.Empty(s.treasury.Transfers())
		})
	}

	s.Run("expiry one above current height succeeds", func() {
		s.SetupTest()
		s.bindAuthority()

		p := validParams(0x02)
		p.Expiry = 8
		id, err := s.registry.RegisterBatch(s.ctx(7), p)
		s.Require().NoError(err)

		batch, err := s.registry.GetBatch(s.ctx(7), id)
		s.Require().NoError(err)
		s.Equal(uint64(7), batch.Timestamp)
		s.Equal(uint64(8), batch.Expiry)
	})
}

func (s *RegistrySuite) TestRegisterBatchCheckOrder() {
	s.Run("first failing check wins on multi-violating input", func() {
		s.SetupTest()
		// No authority bound AND bad certificate id: the field check fires
		// first because the authority gate is the final precondition.
		p := validParams(0x01)
		p.CertID = 0
		_, err := s.registry.RegisterBatch(s.ctx(0), p)
		s.requireCode(err, dErrors.CodeInvalidCertID)
	})

	s.Run("hash length check precedes every other field check", func() {
		s.SetupTest()
		s.bindAuthority()

		p := validParams(0x01)
		p.Hash = []byte{0x01}
		p.Quantity = 0
		p.Currency = "EUR"
		_, err := s.registry.RegisterBatch(s.ctx(0), p)
		s.requireCode(err, dErrors.CodeInvalidHash)
	})

	s.Run("capacity check precedes field checks", func() {
		s.store = store.NewMemory(store.WithMaxBatches(0))
		s.registry = New(s.store, s.treasury)

		p := validParams(0x01)
		p.Hash = []byte{0x01}
		_, err := s.registry.RegisterBatch(s.ctx(0), p)
		s.requireCode(err, dErrors.CodeMaxBatchesExceeded)
	})

	s.Run("hash uniqueness check precedes the authority gate", func() {
		s.SetupTest()
		// Seed the store directly so a hash is taken while no authority is
		// bound: the duplicate must surface 106, not 109.
		_, err := s.store.Insert(context.Background(), models.NewBatch(validParams(0x01), 0))
		s.Require().NoError(err)

		_, err = s.registry.RegisterBatch(s.ctx(0), validParams(0x01))
		s.requireCode(err, dErrors.CodeBatchAlreadyExists)
	})
}

func (s *RegistrySuite) TestCapacityCeiling() {
	s.Run("Nth registration beyond the ceiling fails without side effects", func() {
		s.store = store.NewMemory(store.WithMaxBatches(2))
		s.treasury = treasury.NewLedger()
		s.registry = New(s.store, s.treasury)
		s.Require().NoError(s.registry.SetAuthorityContract(s.ctx(0), authorityPrincipal))

		_, err := s.registry.RegisterBatch(s.ctx(0), validParams(0x01))
		s.Require().NoError(err)
		_, err = s.registry.RegisterBatch(s.ctx(0), validParams(0x02))
		s.Require().NoError(err)

		_, err = s.registry.RegisterBatch(s.ctx(0), validParams(0x03))
		s.requireCode(err, dErrors.CodeMaxBatchesExceeded)

		count, err := s.registry.GetBatchCount(s.ctx(0))
		s.Require().NoError(err)
		s.Equal(uint64(2), count)
		s.Len(s.treasury.Transfers(), 2)
	})
}

func (s *RegistrySuite) TestRegistrationFee() {
	s.Run("fee changes apply to subsequent registrations", func() {
		s.SetupTest()
		s.bindAuthority()

		_, err := s.registry.RegisterBatch(s.ctx(0), validParams(0x01))
		s.Require().NoError(err)

		s.Require().NoError(s.registry.SetRegistrationFee(s.ctx(0), 1200))

		_, err = s.registry.RegisterBatch(s.ctx(0), validParams(0x02))
		s.Require().NoError(err)

		transfers := s.treasury.Transfers()
		s.Require().Len(transfers, 2)
		s.Equal(uint64(500), transfers[0].Amount)
		s.Equal(uint64(1200), transfers[1].Amount)
	})

	s.Run("fee cannot change before an authority is bound", func() {
		s.SetupTest()
		err := s.registry.SetRegistrationFee(s.ctx(0), 1200)
		s.requireCode(err, dErrors.CodeNotAuthorized)
	})
}

func (s *RegistrySuite) TestAuthorityBinding() {
	s.Run("rejects the burn principal", func() {
		s.SetupTest()
		err := s.registry.SetAuthorityContract(s.ctx(0), burnPrincipal)
		s.requireCode(err, dErrors.CodeInvalidInput)
	})

	s.Run("binding is write-once", func() {
		s.SetupTest()
		s.Require().NoError(s.registry.SetAuthorityContract(s.ctx(0), authorityPrincipal))

		err := s.registry.SetAuthorityContract(s.ctx(0), "ST9OTHER")
		s.requireCode(err, dErrors.CodeConflict)

		// Fees keep flowing to the original authority.
		_, err = s.registry.RegisterBatch(s.ctx(0), validParams(0x01))
		s.Require().NoError(err)
		transfers := s.treasury.Transfers()
		s.Require().Len(transfers, 1)
		s.Equal(authorityPrincipal, transfers[0].To.String())
	})
}

func (s *RegistrySuite) TestUpdateBatch() {
	ownerCtx := func(height uint64) context.Context {
		return testutil.LedgerContext(ownerPrincipal, height)
	}

	s.Run("owner updates hash, quantity and timestamp", func() {
		s.SetupTest()
		s.bindAuthority()
		id, err := s.registry.RegisterBatch(s.ctx(0), validParams(0x01))
		s.Require().NoError(err)

		err = s.registry.UpdateBatch(ownerCtx(42), id, hash32(0x02), 250)
		s.Require().NoError(err)

		batch, err := s.registry.GetBatch(s.ctx(42), id)
		s.Require().NoError(err)
		s.Equal(hash32(0x02), batch.Hash)
		s.Equal(uint64(250), batch.Quantity)
		s.Equal(uint64(42), batch.Timestamp)
		// Untouched fields survive the replace.
		s.Equal(originPrincipal, batch.Origin.String())
		s.Equal(uint64(100000), batch.Expiry)

		// Hash index moved: old hash free, new hash maps to the batch.
		exists, err := s.registry.CheckBatchExistence(s.ctx(42), hash32(0x01))
		s.Require().NoError(err)
		s.False(exists)
		exists, err = s.registry.CheckBatchExistence(s.ctx(42), hash32(0x02))
		s.Require().NoError(err)
		s.True(exists)

		update, err := s.registry.GetBatchUpdate(s.ctx(42), id)
		s.Require().NoError(err)
		s.Equal(hash32(0x02), update.UpdateHash)
		s.Equal(uint64(250), update.UpdateQuantity)
		s.Equal(uint64(42), update.UpdateTimestamp)
		s.Equal(ownerPrincipal, update.Updater.String())
	})

	s.Run("non-owner update fails and mutates nothing", func() {
		s.SetupTest()
		s.bindAuthority()
		id, err := s.registry.RegisterBatch(s.ctx(0), validParams(0x01))
		s.Require().NoError(err)

		err = s.registry.UpdateBatch(s.ctx(5), id, hash32(0x02), 250)
		s.requireCode(err, dErrors.CodeUpdateNotAllowed)

		batch, err := s.registry.GetBatch(s.ctx(5), id)
		s.Require().NoError(err)
		s.Equal(hash32(0x01), batch.Hash)
		s.Equal(uint64(100), batch.Quantity)
		s.Equal(uint64(0), batch.Timestamp)

		_, err = s.registry.GetBatchUpdate(s.ctx(5), id)
		s.Require().Error(err, "denied update must not write the update slot")
	})

	s.Run("every failed precondition surfaces the same coarse code", func() {
		s.SetupTest()
		s.bindAuthority()
		id, err := s.registry.RegisterBatch(s.ctx(0), validParams(0x01))
		s.Require().NoError(err)
		_, err = s.registry.RegisterBatch(s.ctx(0), validParams(0x05))
		s.Require().NoError(err)

		cases := []struct {
			name string
			call func() error
		}{
			{"unknown batch", func() error { return s.registry.UpdateBatch(ownerCtx(1), 99, hash32(0x02), 10) }},
			{"wrong owner", func() error { return s.registry.UpdateBatch(s.ctx(1), id, hash32(0x02), 10) }},
			{"short hash", func() error { return s.registry.UpdateBatch(ownerCtx(1), id, []byte{0x02}, 10) }},
			{"zero quantity", func() error { return s.registry.UpdateBatch(ownerCtx(1), id, hash32(0x02), 0) }},
			{"hash held by another batch", func() error { return s.registry.UpdateBatch(ownerCtx(1), id, hash32(0x05), 10) }},
		}
		for _, tc := range cases {
			err := tc.call()
			s.Require().Errorf(err, "%s should fail", tc.name)
			s.Truef(dErrors.HasCode(err, dErrors.CodeUpdateNotAllowed),
				"%s: expected uniform code 112, got %d", tc.name, dErrors.CodeOf(err))
		}
	})

	s.Run("updating to the batch's own hash is allowed", func() {
		s.SetupTest()
		s.bindAuthority()
		id, err := s.registry.RegisterBatch(s.ctx(0), validParams(0x01))
		s.Require().NoError(err)

		err = s.registry.UpdateBatch(ownerCtx(9), id, hash32(0x01), 300)
		s.Require().NoError(err)

		batch, err := s.registry.GetBatch(s.ctx(9), id)
		s.Require().NoError(err)
		s.Equal(hash32(0x01), batch.Hash)
		s.Equal(uint64(300), batch.Quantity)
		s.Equal(uint64(9), batch.Timestamp)
	})

	s.Run("updates do not change the batch count", func() {
		s.SetupTest()
		s.bindAuthority()
		id, err := s.registry.RegisterBatch(s.ctx(0), validParams(0x01))
		s.Require().NoError(err)

		for i := byte(0); i < 3; i++ {
			s.Require().NoError(s.registry.UpdateBatch(ownerCtx(uint64(i)+1), id, hash32(0x20+i), 10))
		}

		count, err := s.registry.GetBatchCount(s.ctx(4))
		s.Require().NoError(err)
		s.Equal(uint64(1), count)
		// Updates settle no fees either.
		s.Len(s.treasury.Transfers(), 1)
	})

	s.Run("repeated updates keep only the latest slot", func() {
		s.SetupTest()
		s.bindAuthority()
		id, err := s.registry.RegisterBatch(s.ctx(0), validParams(0x01))
		s.Require().NoError(err)

		s.Require().NoError(s.registry.UpdateBatch(ownerCtx(1), id, hash32(0x02), 10))
		s.Require().NoError(s.registry.UpdateBatch(ownerCtx(2), id, hash32(0x03), 20))

		update, err := s.registry.GetBatchUpdate(s.ctx(2), id)
		s.Require().NoError(err)
		s.Equal(hash32(0x03), update.UpdateHash)
		s.Equal(uint64(20), update.UpdateQuantity)
		s.Equal(uint64(2), update.UpdateTimestamp)
	})
}

func (s *RegistrySuite) TestReads() {
	s.Run("existence reflects exactly the live hash set", func() {
		s.SetupTest()
		s.bindAuthority()

		exists, err := s.registry.CheckBatchExistence(s.ctx(0), hash32(0x01))
		s.Require().NoError(err)
		s.False(exists)

		_, err = s.registry.RegisterBatch(s.ctx(0), validParams(0x01))
		s.Require().NoError(err)

		exists, err = s.registry.CheckBatchExistence(s.ctx(0), hash32(0x01))
		s.Require().NoError(err)
		s.True(exists)
	})

	s.Run("unknown batch id reads as not found", func() {
		s.SetupTest()
		_, err := s.registry.GetBatch(s.ctx(0), 12)
		s.requireCode(err, dErrors.CodeBatchNotFound)
	})
}

func (s *RegistrySuite) TestAuditTrail() {
	s.Run("mutations emit audit events", func() {
		s.SetupTest()
		s.bindAuthority()

		id, err := s.registry.RegisterBatch(s.ctx(0), validParams(0x01))
		s.Require().NoError(err)
		s.Require().NoError(s.registry.UpdateBatch(testutil.LedgerContext(ownerPrincipal, 3), id, hash32(0x02), 10))

		events, err := s.audits.ListBySubject(context.Background(), "batch/0")
		s.Require().NoError(err)
		s.Require().Len(events, 2)
		s.Equal(string(audit.EventBatchRegistered), events[0].Action)
		s.Equal(string(audit.EventBatchUpdated), events[1].Action)
		s.Equal(uint64(3), events[1].Height)
	})
}
