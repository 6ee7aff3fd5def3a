// Package sikulibridge exposes a Sikuli UI automation engine to a test
// runner through the remote library protocol.
//
// The engine is a separate program, normally a java archive, that serves
// its keywords over XML-RPC. sikulibridge finds the engine artifact,
// launches it on a free loopback port, waits for it to answer, verifies
// the remote interface and then forwards keyword calls to it.
//
// # Quick Start
//
//	b, err := sikulibridge.New(ctx,
//		sikulibridge.WithMode(sikulibridge.ModeNew),
//		sikulibridge.WithLibDir("/opt/sikuli/lib"),
//	)
//	if err != nil {
//		return err
//	}
//	defer b.Close()
//
//	if err := b.StartSikuliProcess(ctx, 0); err != nil {
//		return err
//	}
//	_, err = b.RunKeyword(ctx, "click", []interface{}{"ok.png"})
//
// # Modes
//
// The [Mode] passed to [New] decides what happens during construction:
//
//   - [ModeOld] (default): start the engine. Outside an active test run
//     the engine is stopped again after 1s.
//   - [ModeNew]: do nothing; call [Bridge.StartSikuliProcess] or run the
//     start_sikuli_process keyword.
//   - [ModePython]: connect to an engine already listening on [WithPort].
//   - [ModeDoc]: start the engine and stop it after 4s.
//   - [ModeCreate]: start the engine, write its keywords to a catalog file
//     and stop it after 3s.
//
// # Starting the Engine
//
// The engine artifact is the single file in the library directory matching
// [WithArtifactPattern]. The library directory comes from [WithLibDir], the
// SIKULI_LIB_DIR environment variable, or the lib directory next to the
// running executable. Zero or several matches fail with a [ConfigError]
// before anything is spawned.
//
// Each launch attempt waits up to [WithTimeout] for the engine to answer
// HTTP. An attempt that times out is killed and retried on a fresh port,
// for at most 5 attempts. The connection is then verified by listing
// keywords until that succeeds or the timeout expires.
//
// Engine output goes to Sikuli_java_stdout_*.txt and Sikuli_java_stderr_*.txt
// files in the output directory unless DISABLE_SIKULI_LOG is set or
// [WithoutEngineLogs] is used.
//
// # Keywords
//
// Keyword metadata comes from the bundled catalog (see package catalog)
// except in [ModeCreate] or with [WithLiveKeywords], where it is read from
// the engine. The start_sikuli_process keyword is always answered by the
// bridge and never sent to the engine.
//
// # Shutdown
//
// [Bridge.Close] cancels any scheduled stop, stops an engine the bridge
// launched and releases the connection. An engine the bridge only connected
// to is left running.
package sikulibridge
