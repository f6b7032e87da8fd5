package cli

import (
	"github.com/molforge/fragelab/internal/application/elaboration"
	appposing "github.com/molforge/fragelab/internal/application/posing"
	appruns "github.com/molforge/fragelab/internal/application/runs"
	appscreening "github.com/molforge/fragelab/internal/application/screening"
	"github.com/molforge/fragelab/internal/config"
	"github.com/molforge/fragelab/internal/domain/fragment"
	domainposing "github.com/molforge/fragelab/internal/domain/posing"
	domainscreening "github.com/molforge/fragelab/internal/domain/screening"
	"github.com/molforge/fragelab/internal/infrastructure/database/memory"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/internal/infrastructure/storage/local"
)

// localPipeline bundles the services for an in-process pipeline invocation:
// a run repository in memory, elaborations and poses on local disk.
type localPipeline struct {
	Library     *fragment.Library
	Elaboration elaboration.Service
	Screening   appscreening.Service
	Posing      appposing.Service
	Runs        appruns.Service
	Repo        *memory.RunRepository
	Poses       *local.PoseDir
}

// buildLocalPipeline assembles the full pipeline from config. poseDir
// overrides the pose output directory when non-empty.
func buildLocalPipeline(cfg *config.Config, logger logging.Logger, poseDir string) (*localPipeline, error) {
	lib, err := fragment.LoadLibraryFile(cfg.Library.Path)
	if err != nil {
		return nil, err
	}

	source := local.NewElaborationDir(cfg.Library.ElaborationsDir, logger)
	elab := elaboration.NewService(lib, source, logger, nil)

	screen, err := appscreening.NewService(appscreening.Config{
		Thresholds:  thresholdsFromConfig(cfg.Screening),
		EnablePAINS: cfg.Screening.EnablePAINS,
	}, nil, logger, nil)
	if err != nil {
		return nil, err
	}

	pose, err := appposing.NewService(lib, domainposing.DefaultToolkit(), appposing.Config{
		Strategy:        domainposing.Strategy(cfg.Posing.Strategy),
		NumConformers:   cfg.Posing.NumConformers,
		EnsembleSeed:    cfg.Posing.EnsembleSeed,
		ConstrainedSeed: cfg.Posing.ConstrainedSeed,
		Workers:         cfg.Posing.Workers,
	}, logger, nil)
	if err != nil {
		return nil, err
	}

	if poseDir == "" {
		poseDir = "poses"
	}
	repo := memory.NewRunRepository()
	poses := local.NewPoseDir(poseDir, logger)

	runSvc, err := appruns.NewService(appruns.Deps{
		Repo:        repo,
		Poses:       poses,
		Elaboration: elab,
		Screening:   screen,
		Posing:      pose,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	return &localPipeline{
		Library:     lib,
		Elaboration: elab,
		Screening:   screen,
		Posing:      pose,
		Runs:        runSvc,
		Repo:        repo,
		Poses:       poses,
	}, nil
}

func thresholdsFromConfig(sc config.ScreeningConfig) domainscreening.Thresholds {
	th := domainscreening.DefaultThresholds()
	if sc.MaxMolWeight > 0 {
		th.MaxMolWeight = sc.MaxMolWeight
	}
	if sc.MaxLogP > 0 {
		th.MaxCLogP = sc.MaxLogP
	}
	if sc.MaxHBA > 0 {
		th.MaxHBA = sc.MaxHBA
	}
	if sc.MaxHBD > 0 {
		th.MaxHBD = sc.MaxHBD
	}
	if sc.MaxViolations > 0 {
		th.MaxViolations = sc.MaxViolations
	}
	return th
}
