// Package snowflake adapts the gosnowflake driver to the operations a
// deployment needs.
//
// A Client owns exactly one session. Scripts, audit inserts and session
// statements such as USE DATABASE all run on it in sequence, so session
// state set by one statement is visible to the next.
//
// Example:
//
//	client, err := snowflake.Open(ctx, snowflake.ConnectionConfig{
//		Account:   "xy12345.us-east-1",
//		User:      "DEPLOYER",
//		Password:  os.Getenv("SNOWSQL_PWD"),
//		Role:      "DEPLOYER_ROLE",
//		Warehouse: "ELT",
//		Database:  "COEDW_DEV",
//	})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	err = client.ExecScript(ctx, "CREATE TABLE T (ID INT); INSERT INTO T VALUES (1)")
package snowflake
