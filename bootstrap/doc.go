// Package bootstrap assembles the transaction server: configuration, logging,
// the background MongoDB connection, the HTTP application and its route table.
//
// Usage:
//
//	app, err := bootstrap.NewApp(config.LoadOptions{EnvFile: ".env"})
//	if err != nil {
//	    return err
//	}
//	defer app.Shutdown()
//
//	if err := app.Start(ctx); err != nil {
//	    return err
//	}
//
//	// Wait for shutdown signal
//	app.WaitForShutdown()
package bootstrap
