// Package dbihost declares the surface the producer agent needs from the
// DBI (dynamic binary instrumentation) runtime it is injected into. The
// runtime itself — module-load callbacks, per-basic-block discovery,
// clean-call insertion, the monotonic clock, thread/process identity — is
// an external collaborator outside this repository's scope; agentcore is
// driven entirely through the Host interface here so it can be exercised
// against a fake in tests without a real DBI host attached.
package dbihost

// ModuleLoadEvent is what the host reports when a module is mapped into
// the traced process, including every module already loaded at attach
// time.
type ModuleLoadEvent struct {
	Start    uint64
	End      uint64
	FullPath string
}

// BasicBlock is what the host's per-basic-block discovery callback
// supplies before the block is compiled into the traced process's code
// cache.
type BasicBlock struct {
	// Tag identifies the block to a later InsertCleanCall call.
	Tag uintptr

	// StartPC is the first application-level instruction's PC.
	StartPC uint64

	// EndExclusivePC is the last application-level instruction's PC plus
	// its length. HasLastInstruction is false when the block has no
	// application-level instructions to derive it from.
	EndExclusivePC     uint64
	HasLastInstruction bool
}

// CleanCallArgs are the fixed arguments the instrumentation hook passes to
// the clean call it inserts at a basic block's head.
type CleanCallArgs struct {
	DRContext    uintptr
	Start        uint64
	Tag          uintptr
	EndExclusive uint64
}

// Host is the minimal surface the agent needs from the DBI runtime. Its
// real implementation is the DynamoRIO client shim linked into the
// instrumented process — out of scope here; this repository only depends
// on this interface.
type Host interface {
	// RegisterModuleLoadCallback invokes fn for every module mapped into
	// the traced process.
	RegisterModuleLoadCallback(fn func(ModuleLoadEvent))

	// RegisterModuleUnloadCallback invokes fn when a module is unmapped.
	RegisterModuleUnloadCallback(fn func(base uint64))

	// RegisterBBCallback invokes fn once per newly discovered basic
	// block. fn returns whether the host should insert a clean call for
	// this block.
	RegisterBBCallback(fn func(BasicBlock) bool)

	// InsertCleanCall requests that onBB be called with args at the head
	// of the basic block identified by tag. The host owns the actual
	// code generation; onBB always runs on the application thread that
	// reaches the block.
	InsertCleanCall(tag uintptr, args CleanCallArgs, onBB func(CleanCallArgs))

	// CurrentThreadID and CurrentProcessID identify the calling
	// application thread/process from within a clean call.
	CurrentThreadID() uint32
	CurrentProcessID() uint32

	// MonotonicMicros returns microseconds on the host's monotonic
	// clock, used to stamp BasicBlockHit.TimestampUs.
	MonotonicMicros() uint64
}
