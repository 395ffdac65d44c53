// Package engine hosts the embedded SQLite database on a dedicated worker
// goroutine.
//
// Callers never touch the database handle directly. They submit a function
// with Do and block until the worker has run it. Requests are served one at
// a time in the order they were queued, so statements issued by one caller
// execute in issue order and never overlap with statements from another.
//
//	w, err := engine.Start(engine.Config{Database: dbCfg, QueueSize: 64})
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	err = w.Do(ctx, func(ctx context.Context, db *database.DB) error {
//	    _, err := db.ExecContext(ctx, "DELETE FROM patients WHERE id = ?", id)
//	    return err
//	})
package engine
