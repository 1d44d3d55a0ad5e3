package resolve

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/matzehuels/depsolve/pkg/graph"
	"github.com/matzehuels/depsolve/pkg/metadata"
	"github.com/matzehuels/depsolve/pkg/module"
)

// errCapabilityMissing marks a resolved variant that does not expose the
// capability the declaring dependency asked for.
var errCapabilityMissing = errors.New("requested capability not provided")

// Provisional is the graph builder's output: the candidate graph before
// conflict detection, plus everything recorded along the way.
type Provisional struct {
	Graph    *graph.Graph
	RootID   string
	Registry *Registry

	// Conflicts holds cycles and unresolvable selectors found during
	// traversal. Version and capability conflicts are found later by the
	// detector.
	Conflicts []Conflict
}

// builder performs one traversal. Workers fetch metadata concurrently; all
// graph, registry and bookkeeping writes happen in the single collect
// goroutine, which keeps the single-writer invariant auditable.
type builder struct {
	ctx  context.Context
	src  metadata.Source
	opts Options

	g      *graph.Graph
	reg    *Registry
	rootID string

	jobs    chan job
	results chan result
	wg      sync.WaitGroup
	senders sync.WaitGroup

	pending   int64
	nodeCount int32

	// Collect-goroutine state. No locks: only collect touches these.
	states    map[string]*selState // selector+variant -> fetch outcome
	visited   map[string]bool      // selector+variant+exclusions -> subtree expanded
	conflicts []Conflict
	cycleSeen map[string]bool
	selSeen   map[string]bool
}

// job asks a worker to resolve one dependency edge's target.
type job struct {
	dep     module.Dependency
	variant string // target variant name, defaults already applied
	edge    edgeRequest
}

// edgeRequest is a parent waiting for a selector outcome: where the edge
// starts, the traversal path leading there, and the exclusions active in
// the subtree below it.
type edgeRequest struct {
	fromID     string
	path       []pathEntry
	exclusions []module.Exclusion
	depth      int
}

// pathEntry is one ancestor on the traversal path.
type pathEntry struct {
	mod    module.ID
	nodeID string
}

type result struct {
	job
	owner   module.VersionID
	variant *module.Variant
	err     error
}

// selState tracks one selector's fetch lifecycle. While the fetch is in
// flight additional requesters pile up in waiters; once done, the outcome
// is applied to all of them.
type selState struct {
	done    bool
	nodeID  string
	variant *module.Variant
	err     error
	waiters []job
}

func (e *Engine) build(ctx context.Context, root *module.Variant) (*Provisional, error) {
	b := &builder{
		ctx:       ctx,
		src:       e.src,
		opts:      e.opts,
		g:         graph.New(),
		reg:       NewRegistry(),
		jobs:      make(chan job, e.opts.Workers*2),
		results:   make(chan result, e.opts.Workers*2),
		states:    make(map[string]*selState),
		visited:   make(map[string]bool),
		cycleSeen: make(map[string]bool),
		selSeen:   make(map[string]bool),
	}
	return b.run(root)
}

func (b *builder) run(root *module.Variant) (*Provisional, error) {
	rootNode := graph.Node{
		ID:           graph.NodeID(root.Owner, root.Name),
		Owner:        root.Owner,
		Variant:      root.Name,
		Capabilities: root.EffectiveCapabilities(),
	}
	if err := b.g.AddNode(rootNode); err != nil {
		return nil, err
	}
	b.rootID = rootNode.ID
	b.nodeCount = 1
	b.reg.Register(rootNode.ID, rootNode.Owner.Module, rootNode.Capabilities)

	for range b.opts.Workers {
		b.wg.Add(1)
		go b.worker()
	}

	rootPath := []pathEntry{{mod: root.Owner.Module, nodeID: rootNode.ID}}
	b.expandVariant(rootNode.ID, root, rootPath, nil, 0)

	err := b.collect()
	// On cancellation senders may still be blocked on the jobs channel;
	// they must finish before the channel can close.
	b.senders.Wait()
	close(b.jobs)
	b.wg.Wait()
	if err != nil {
		return nil, err
	}

	return &Provisional{
		Graph:     b.g,
		RootID:    b.rootID,
		Registry:  b.reg,
		Conflicts: b.conflicts,
	}, nil
}

// worker resolves selectors against the metadata source. Lookups may block
// on I/O; no shared state is touched here.
func (b *builder) worker() {
	defer b.wg.Done()
	for j := range b.jobs {
		if b.ctx.Err() != nil {
			atomic.AddInt64(&b.pending, -1)
			continue
		}
		owner, err := b.src.ResolveSelector(b.ctx, j.dep.Target)
		var v *module.Variant
		if err == nil {
			v, err = b.src.Variant(b.ctx, owner, j.variant)
		}
		select {
		case b.results <- result{job: j, owner: owner, variant: v, err: err}:
		case <-b.ctx.Done():
		}
	}
}

// collect drains results until no jobs remain in flight. This is the only
// goroutine mutating the graph.
func (b *builder) collect() error {
	for atomic.LoadInt64(&b.pending) > 0 {
		select {
		case r := <-b.results:
			b.handle(r)
			if atomic.AddInt64(&b.pending, -1) == 0 {
				return nil
			}
		case <-b.ctx.Done():
			return b.ctx.Err()
		}
	}
	return nil
}

// expandVariant walks a variant's declared dependencies. The path must
// already include the declaring node; exclusions are the set inherited from
// the edges above it.
func (b *builder) expandVariant(nodeID string, v *module.Variant, path []pathEntry, exclusions []module.Exclusion, depth int) {
	if depth >= b.opts.MaxDepth {
		b.opts.Logger("max depth %d reached at %s", b.opts.MaxDepth, nodeID)
		return
	}
	for _, dep := range v.Dependencies {
		b.processDep(dep, edgeRequest{
			fromID:     nodeID,
			path:       path,
			exclusions: exclusions,
			depth:      depth,
		})
	}
}

// processDep handles one declared dependency edge: exclusion pruning, cycle
// detection, then selector resolution (deduplicated across the whole run).
func (b *builder) processDep(dep module.Dependency, edge edgeRequest) {
	target := dep.Target.Module

	for _, excl := range edge.exclusions {
		if excl.Matches(target) {
			return // pruned before the edge is followed
		}
	}

	if idx := slices.IndexFunc(edge.path, func(p pathEntry) bool { return p.mod == target }); idx >= 0 {
		b.recordCycle(edge.path[idx:])
		return
	}

	variantName := dep.Variant
	if variantName == "" {
		variantName = b.opts.DefaultVariant
	}

	key := outcomeKey(dep.Target, variantName)
	j := job{dep: dep, variant: variantName, edge: edge}

	state, ok := b.states[key]
	if !ok {
		if int(b.nodeCount) >= b.opts.MaxNodes {
			b.opts.Logger("max nodes %d reached, skipping %s", b.opts.MaxNodes, dep.Target)
			return
		}
		b.states[key] = &selState{}
		atomic.AddInt64(&b.pending, 1)
		b.senders.Add(1)
		go func() {
			defer b.senders.Done()
			select {
			case b.jobs <- j:
			case <-b.ctx.Done():
			}
		}()
		return
	}

	if !state.done {
		state.waiters = append(state.waiters, j)
		return
	}
	b.applyOutcome(state, j)
}

// handle applies a completed fetch: it finalizes the selector state and
// links the requester plus everyone who queued up behind it.
func (b *builder) handle(r result) {
	key := outcomeKey(r.dep.Target, r.job.variant)
	state := b.states[key]
	state.done = true

	if r.err != nil {
		state.err = r.err
	} else {
		nodeID := graph.NodeID(r.owner, r.variant.Name)
		if _, exists := b.g.Node(nodeID); !exists {
			_ = b.g.AddNode(graph.Node{
				ID:           nodeID,
				Owner:        r.owner,
				Variant:      r.variant.Name,
				Capabilities: r.variant.EffectiveCapabilities(),
			})
			atomic.AddInt32(&b.nodeCount, 1)
			b.reg.Register(nodeID, r.owner.Module, r.variant.EffectiveCapabilities())
		}
		state.nodeID = nodeID
		state.variant = r.variant
	}

	waiters := state.waiters
	state.waiters = nil
	b.applyOutcome(state, r.job)
	for _, w := range waiters {
		b.applyOutcome(state, w)
	}
}

// applyOutcome links one requester to a finished selector outcome: either
// an edge plus (first time through) the subtree expansion, or a recorded
// selector conflict.
func (b *builder) applyOutcome(state *selState, j job) {
	if state.err != nil {
		b.recordSelectorConflict(j, state.err)
		return
	}

	if cap := j.dep.RequestedCapability; cap != nil && !providesCapability(state.variant, cap.ID()) {
		b.recordSelectorConflict(j, errCapabilityMissing)
		return
	}

	_ = b.g.AddEdge(graph.Edge{
		From:             j.edge.fromID,
		To:               state.nodeID,
		RequestedVersion: j.dep.Target.Version,
	})

	childExclusions := j.edge.exclusions
	if len(j.dep.Exclusions) > 0 {
		childExclusions = append(slices.Clone(childExclusions), j.dep.Exclusions...)
	}

	visitKey := outcomeKey(j.dep.Target, j.variant) + "!" + exclusionFingerprint(childExclusions)
	if b.visited[visitKey] {
		return
	}
	b.visited[visitKey] = true

	childPath := append(slices.Clone(j.edge.path), pathEntry{
		mod:    state.variant.Owner.Module,
		nodeID: state.nodeID,
	})
	b.expandVariant(state.nodeID, state.variant, childPath, childExclusions, j.edge.depth+1)
}

// recordCycle stores a cycle conflict for the chain closing at its first
// entry. Cycles reached from several directions are reported once.
func (b *builder) recordCycle(chain []pathEntry) {
	participants := make([]string, len(chain))
	for i, p := range chain {
		participants[i] = p.nodeID
	}

	canonical := canonicalParticipants(participants)
	key := strings.Join(canonical, "\x00")
	if b.cycleSeen[key] {
		return
	}
	b.cycleSeen[key] = true

	b.conflicts = append(b.conflicts, Conflict{
		Kind:         KindCycle,
		Participants: canonical,
	})
}

func (b *builder) recordSelectorConflict(j job, cause error) {
	key := j.dep.Target.String() + "|" + j.edge.fromID
	if b.selSeen[key] {
		return
	}
	b.selSeen[key] = true

	reason := ""
	switch {
	case errors.Is(cause, errCapabilityMissing):
		reason = "no variant provides capability " + j.dep.RequestedCapability.ID().String()
	case cause != nil && !errors.Is(cause, metadata.ErrNotFound):
		reason = cause.Error()
	}

	b.conflicts = append(b.conflicts, Conflict{
		Kind:     KindSelector,
		Selector: j.dep.Target,
		From:     j.edge.fromID,
		Reason:   reason,
	})
}

func providesCapability(v *module.Variant, id module.CapabilityID) bool {
	for _, c := range v.EffectiveCapabilities() {
		if c.ID() == id {
			return true
		}
	}
	return false
}

func outcomeKey(sel module.Selector, variant string) string {
	return sel.String() + "#" + variant
}

// exclusionFingerprint canonicalizes an exclusion set so that subtree
// expansions are deduplicated only when the same rules apply inside them.
func exclusionFingerprint(exclusions []module.Exclusion) string {
	if len(exclusions) == 0 {
		return ""
	}
	parts := make([]string, len(exclusions))
	for i, e := range exclusions {
		parts[i] = e.Group + ":" + e.Name
	}
	slices.Sort(parts)
	parts = slices.Compact(parts)
	return strings.Join(parts, ",")
}

// canonicalParticipants rotates a cycle chain to start at its lexically
// smallest node so equivalent chains collapse to one report.
func canonicalParticipants(chain []string) []string {
	cycle := slices.Clone(chain)
	min := 0
	for i, id := range cycle {
		if id < cycle[min] {
			min = i
		}
	}
	return append(cycle[min:], cycle[:min]...)
}
