// Package patient is the patient registry: lazy engine start-up, schema
// provisioning and the query surfaces built on top of it.
//
// A Manager owns the engine worker. Nothing touches the database file until
// the first call that needs it, at which point the Manager starts the worker
// and provisions the schema exactly once, however many callers arrive
// together. If that fails nothing is kept and the next call tries again.
//
// Two query surfaces share the Manager:
//
//   - Service registers and lists patients with fixed, parameterised SQL.
//   - Console runs caller-supplied SQL and reports every outcome in a
//     QueryResult envelope. It is for trusted operators only.
//
// Usage:
//
//	mgr := patient.NewManager(
//	    patient.EngineOpener(engineCfg, logger),
//	    patient.MigrationProvisioner{Source: migrations.Source()},
//	    logger,
//	)
//	defer mgr.Close()
//
//	svc := patient.NewService(mgr, logger)
//	id, err := svc.Register(ctx, patient.Input{Name: "Ada", Age: "36"})
package patient
