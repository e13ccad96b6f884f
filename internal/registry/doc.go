// Package registry talks to a local Docker daemon for the image lifecycle.
//
// A [Client] wraps the daemon's Unix-socket API and provides the five
// operations the packaging pipeline needs: pull a base image, build a
// context directory into a tagged image, push it to a registry, remove the
// local copy, and start a detached container from a pushed image.
//
// Daemon responses are streamed; every operation drains its stream to
// completion before returning, forwarding progress records to an injected
// [Observer] so long-running builds give continuous feedback. An error
// record in the stream fails the operation.
//
// Example usage:
//
//	c, err := registry.New("", registry.WithObserver(registry.Stdout()))
//	if err != nil {
//	    return err
//	}
//
//	if err := c.Pull(ctx, "python:3.7"); err != nil {
//	    return err
//	}
//	if err := c.Build(ctx, contextDir, "myrepo/etl:v1"); err != nil {
//	    return err
//	}
//	if _, err := c.Push(ctx, "myrepo/etl:v1"); err != nil {
//	    return err
//	}
package registry
