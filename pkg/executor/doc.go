// Package executor applies resolved change scripts to Snowflake.
//
// Each script goes through the same state machine and ends in exactly one of
// three states:
//
//   - skipped: the script's environment guard excludes the target environment;
//     nothing is executed and no audit row is written
//   - applied: the rewritten script ran and its change history row was written
//   - failed: execution or auditing failed; execution stops immediately
//
// # Transactions
//
// Without autocommit, a script and its change history row are written in one
// transaction: both are committed or both are rolled back. With autocommit,
// every statement commits on its own. A failing audit insert then leaves the
// already executed script in place, and the failure still aborts the run.
//
// # Usage Example
//
//	exec := executor.New(executor.Config{
//		DB:          client,
//		Store:       store,
//		Rewriter:    rewrite.New(cfg, "dev", vars),
//		Environment: "dev",
//		Database:    "COEDW_DEV",
//		Build: executor.Build{
//			ID:        "20240501.3",
//			StartTime: started,
//			User:      "DEPLOYER",
//			Pipeline:  "coedw-ci",
//		},
//	})
//
//	results, err := exec.Execute(ctx, set.Scripts())
//	if err != nil {
//		// err is a failure.Application error naming the failed script
//	}
//
//	applied, skipped := executor.Counts(results)
package executor
