package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/avdeenkov/tourneysync/internal/domain/tournament"
)

type tournamentRepoMock struct {
	mock.Mock
}

func (m *tournamentRepoMock) Upsert(ctx context.Context, t tournament.Tournament) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *tournamentRepoMock) Exists(ctx context.Context, pageName string) (bool, error) {
	args := m.Called(ctx, pageName)
	return args.Bool(0), args.Error(1)
}

func TestImportTournamentExistenceCheckFailure(t *testing.T) {
	t.Parallel()

	repo := &tournamentRepoMock{}
	repo.
		On("Exists", mock.Anything, "Example Cup").
		Return(false, errors.New("connection refused")).
		Once()

	service := NewImportService(
		&fakeWiki{wikitext: map[string]string{"Example Cup": "page"}},
		nil,
		&fakeMetadata{},
		&fakeRosters{},
		&fakeStages{},
		nil,
		repo,
		nil,
		nil,
		0,
		nil,
	)

	result, err := service.ImportTournament(context.Background(), "Example Cup", ImportOptions{})
	if err == nil {
		t.Fatal("expected error when existence check fails")
	}
	if result.Success {
		t.Fatal("result must not be successful")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v", result.Errors)
	}
	repo.AssertExpectations(t)
}

func TestImportTournamentForceSkipsExistenceCheck(t *testing.T) {
	t.Parallel()

	repo := &tournamentRepoMock{}
	repo.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("read only replica")).Once()

	service := NewImportService(
		&fakeWiki{wikitext: map[string]string{"Example Cup": "page"}},
		nil,
		&fakeMetadata{meta: testMeta(nil), found: true},
		&fakeRosters{},
		&fakeStages{},
		nil,
		repo,
		nil,
		nil,
		0,
		nil,
	)

	_, err := service.ImportTournament(context.Background(), "Example Cup", ImportOptions{Force: true})
	if err == nil {
		t.Fatal("expected upsert error to surface")
	}
	// Exists must never be called under Force.
	repo.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}
