// Package flow defines the unit of work that environments package and run.
//
// A [Flow] is a named, ordered list of tasks. Tasks reference actions by
// name; the executing process resolves those names against its own action
// registry, so a flow serialized in one process (or baked into a container
// image) can be executed in another, as long as both register the same
// actions.
//
// The [Runner] interface is the execution-engine contract. Environments are
// handed a [RunnerFactory] and never reach into global state to find one.
// [TaskRunner] is the built-in sequential engine; embedders with their own
// scheduler substitute a factory for it.
//
// Example usage:
//
//	flow.RegisterAction("shell.echo", echoAction)
//
//	f := &flow.Flow{
//	    Name: "etl",
//	    Tasks: []flow.Task{
//	        {Name: "extract", Action: "shell.echo", With: map[string]string{"msg": "hi"}},
//	        {Name: "load", Action: "shell.echo", DependsOn: []string{"extract"}},
//	    },
//	}
//
//	state, err := flow.NewTaskRunner(f).Run(ctx, flow.RunOptions{})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(state.Status)
package flow
