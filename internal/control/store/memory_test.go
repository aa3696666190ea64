package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"parapet/internal/control/models"
	id "parapet/pkg/domain"
	"parapet/pkg/platform/sentinel"
)

type ControlStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *ControlStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestControlStoreSuite(t *testing.T) {
	suite.Run(t, new(ControlStoreSuite))
}

func (s *ControlStoreSuite) newControl(reference, name string) *models.Control {
	control, err := models.NewControl(id.NewControlID(), reference, name, "", time.Now())
	s.Require().NoError(err)
	return control
}

// TestCreationAndLookups verifies the store correctly creates and retrieves controls.
func (s *ControlStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds control by ID", func() {
		control := s.newControl("A.8.16", "Monitoring activities")
		s.Require().NoError(s.store.Create(s.ctx, control))

		found, err := s.store.FindByID(s.ctx, control.ID)
		s.Require().NoError(err)
		s.Equal(control.Reference, found.Reference)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.NewControlID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestReferenceUniqueness verifies case-insensitive reference uniqueness.
func (s *ControlStoreSuite) TestReferenceUniqueness() {
	s.Run("rejects duplicate reference", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newControl("A.5.1", "Policies")))

		err := s.store.Create(s.ctx, s.newControl("A.5.1", "Different name"))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("enforces case-insensitive uniqueness", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newControl("pci-3.4", "Render PAN unreadable")))

		err := s.store.Create(s.ctx, s.newControl("PCI-3.4", "Duplicate"))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})
}

// TestList verifies the catalog is returned ordered by reference.
func (s *ControlStoreSuite) TestList() {
	s.Require().NoError(s.store.Create(s.ctx, s.newControl("B.2", "Second")))
	s.Require().NoError(s.store.Create(s.ctx, s.newControl("A.1", "First")))
	s.Require().NoError(s.store.Create(s.ctx, s.newControl("C.3", "Third")))

	controls, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(controls, 3)
	s.Equal("A.1", controls[0].Reference)
	s.Equal("B.2", controls[1].Reference)
	s.Equal("C.3", controls[2].Reference)
}
