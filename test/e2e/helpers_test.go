package e2e_test

import (
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/molforge/fragelab/internal/application/elaboration"
	appposing "github.com/molforge/fragelab/internal/application/posing"
	appruns "github.com/molforge/fragelab/internal/application/runs"
	appscreening "github.com/molforge/fragelab/internal/application/screening"
	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/internal/domain/fragment"
	domainposing "github.com/molforge/fragelab/internal/domain/posing"
	domainscreening "github.com/molforge/fragelab/internal/domain/screening"
	"github.com/molforge/fragelab/internal/infrastructure/database/memory"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/internal/infrastructure/storage/local"
	"github.com/molforge/fragelab/internal/interfaces/http/handlers"
	httpserver "github.com/molforge/fragelab/internal/interfaces/http"
	"github.com/molforge/fragelab/internal/testutil"
	"github.com/molforge/fragelab/pkg/client"
)

// testEnv is one fully wired in-process stack: the pipeline services over an
// in-memory run repository and local disk, fronted by the HTTP router and
// reached through the Go SDK.
type testEnv struct {
	Library     *fragment.Library
	Elaboration elaboration.Service
	Runs        appruns.Service
	Repo        *memory.RunRepository
	PosesDir    string
	Server      *httptest.Server
	SDK         *client.Client
}

const (
	numClean   = 9
	numRecords = 12
	numConfs   = 5
)

// newTestEnv seeds a three-fragment library and one link elaboration set of
// twelve candidates: nine that pass both filters, two that break the
// drug-likeness rules, and one PAINS hit. The failing records sit at
// ordinals 3, 7, and 10 so report ordering is actually exercised.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	logger := logging.NewNopLogger()

	libPath := testutil.WriteSDFFile(t, dir, "library.sdf",
		testutil.LibrarySDF(t, "F1", "F2", "F3"))

	prov := fragment.PairProvenance("F1", "F3")
	records := make([]*mol.Mol, 0, numRecords)
	clean := 0
	for i := 0; i < numRecords; i++ {
		switch i {
		case 3, 10:
			records = append(records, testutil.HeavyRecord(t, fmt.Sprintf("heavy-%d", i), prov))
		case 7:
			records = append(records, testutil.QuinoneRecord(t, "quinone-7", prov))
		default:
			records = append(records, testutil.CleanRecord(t, fmt.Sprintf("cand-%02d", clean), prov))
			clean++
		}
	}
	elabsDir := filepath.Join(dir, "elabs")
	testutil.WriteSDFFile(t, elabsDir, "F1-F3.sdf", testutil.SetSDF(t, records...))

	lib, err := fragment.LoadLibraryFile(libPath)
	require.NoError(t, err)

	source := local.NewElaborationDir(elabsDir, logger)
	elabSvc := elaboration.NewService(lib, source, logger, nil)

	screenSvc, err := appscreening.NewService(appscreening.Config{
		Thresholds:  domainscreening.DefaultThresholds(),
		EnablePAINS: true,
	}, nil, logger, nil)
	require.NoError(t, err)

	poseSvc, err := appposing.NewService(lib, domainposing.DefaultToolkit(), appposing.Config{
		Strategy:      domainposing.StrategyEnsemble,
		NumConformers: numConfs,
		EnsembleSeed:  7,
		Workers:       2,
	}, logger, nil)
	require.NoError(t, err)

	repo := memory.NewRunRepository()
	posesDir := filepath.Join(dir, "poses")
	runSvc, err := appruns.NewService(appruns.Deps{
		Repo:        repo,
		Poses:       local.NewPoseDir(posesDir, logger),
		Elaboration: elabSvc,
		Screening:   screenSvc,
		Posing:      poseSvc,
		Logger:      logger,
	})
	require.NoError(t, err)

	health := handlers.NewHealthHandler("e2e", logger, nil)
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:      logger,
		Mode:        "test",
		Elaboration: elabSvc,
		Runs:        runSvc,
		Health:      health,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	sdk, err := client.NewClient(srv.URL)
	require.NoError(t, err)

	return &testEnv{
		Library:     lib,
		Elaboration: elabSvc,
		Runs:        runSvc,
		Repo:        repo,
		PosesDir:    posesDir,
		Server:      srv,
		SDK:         sdk,
	}
}
