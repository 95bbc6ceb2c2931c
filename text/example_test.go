package text_test

import (
	"fmt"

	"github.com/brunokim/cotext/text"
)

func Example() {
	local := text.NewBuffer(0, "hello")
	remote := local.Fork(1)

	// Concurrent edits on both replicas.
	localOps, _, _ := local.Edit([]text.OffsetRange{{Start: 5, End: 5}}, " world")
	remoteOps, _, _ := remote.Edit([]text.OffsetRange{{Start: 0, End: 0}}, "say: ")

	// Exchange operations; both replicas converge.
	local.ApplyRemote(remoteOps)
	remote.ApplyRemote(localOps)

	fmt.Println(local.Text())
	fmt.Println(remote.Text())
	// Output:
	// say: hello world
	// say: hello world
}

func ExampleAnchor() {
	b := text.NewBuffer(0, "hello world")
	a := b.Snapshot().AnchorBefore(6) // before "world"

	// The anchor tracks its position through edits elsewhere.
	b.Edit([]text.OffsetRange{{Start: 0, End: 0}}, ">> ")

	fmt.Println(a.Resolve(b.Snapshot()))
	// Output:
	// 9
}
