// Package bootstrap runs the service lifecycle: start registered components,
// run configure callbacks and hooks, log a startup summary, wait for a
// signal, then shut everything down in reverse order.
//
//	app, err := bootstrap.NewApp(cfg)
//	app.RegisterComponent(srv)
//	app.OnReady(func(ctx context.Context) error { ... })
//	err = app.Run(ctx)
//
// RunTask is the variant for finite work such as the decode command: the task
// context is cancelled on SIGINT or SIGTERM.
package bootstrap
