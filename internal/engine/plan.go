package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flowmesh-ai/flowmesh/pkg/models"
)

// compiledNode is one node resolved against the registry: its executor and
// typed config bound once, its outgoing edges split into conditioned routes
// and conditionless defaults.
type compiledNode struct {
	node      models.Node
	exec      Executor
	config    NodeConfig
	output    string
	condEdges []compiledEdge
	defaults  []string
}

type compiledEdge struct {
	target    string
	condition *Condition
}

// Plan is a workflow compiled for execution: validated graph, resolved
// executors, decoded configs and compiled edge conditions. Compilation
// happens at save time and again when a run starts; a run never touches raw
// config maps or does string-keyed dispatch per step.
type Plan struct {
	workflow *models.Workflow
	entry    string
	nodes    map[string]*compiledNode
}

// Workflow returns the definition this plan was compiled from.
func (p *Plan) Workflow() *models.Workflow { return p.workflow }

// Entry returns the id of the entry node.
func (p *Plan) Entry() string { return p.entry }

// outputBinding returns the context variable a node's output binds under.
func (p *Plan) outputBinding(nodeID string) string {
	if cn, ok := p.nodes[nodeID]; ok {
		return cn.output
	}
	return nodeID
}

// outputs extracts the run output from the final context: the declared
// output variables, or the full context when none are declared.
func (p *Plan) outputs(ec *ExecutionContext) map[string]any {
	var declared []string
	for _, v := range p.workflow.Variables {
		if v.Output {
			declared = append(declared, v.Name)
		}
	}
	if len(declared) == 0 {
		return ec.Snapshot()
	}
	out := make(map[string]any, len(declared))
	for _, name := range declared {
		if v, ok := ec.Get(name); ok {
			out[name] = v.Interface()
		}
	}
	return out
}

// Compile validates a workflow definition and resolves it against the
// registry. All validation errors wrap ErrInvalidGraph and occur before any
// run record is created or mutated.
func Compile(wf *models.Workflow, registry *Registry) (*Plan, error) {
	if len(wf.Nodes) == 0 {
		return nil, fmt.Errorf("%w: workflow has no nodes", ErrInvalidGraph)
	}

	nodes := make(map[string]*compiledNode, len(wf.Nodes))
	for _, node := range wf.Nodes {
		if node.ID == "" {
			return nil, fmt.Errorf("%w: node with empty id", ErrInvalidGraph)
		}
		if _, dup := nodes[node.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node id %q", ErrInvalidGraph, node.ID)
		}
		exec, ok := registry.Get(node.Type)
		if !ok {
			return nil, fmt.Errorf("%w: node %q has unknown type %q", ErrInvalidGraph, node.ID, node.Type)
		}
		cfg, err := exec.DecodeConfig(node.Config)
		if err != nil {
			return nil, fmt.Errorf("%w: node %q: %v", ErrInvalidGraph, node.ID, err)
		}
		output := node.ID
		if namer, ok := cfg.(outputNamer); ok && namer.outputName() != "" {
			output = namer.outputName()
		}
		nodes[node.ID] = &compiledNode{node: node, exec: exec, config: cfg, output: output}
	}

	if wf.Trigger.Type == models.TriggerTypeSchedule && wf.Trigger.Schedule == "" {
		return nil, fmt.Errorf("%w: schedule trigger requires a cron expression", ErrInvalidGraph)
	}

	// Identifiers edge conditions may reference: declared variables and
	// node output bindings.
	nameSet := make(map[string]struct{})
	for _, v := range wf.Variables {
		nameSet[v.Name] = struct{}{}
	}
	for _, cn := range nodes {
		nameSet[cn.output] = struct{}{}
	}
	globalNames := make([]string, 0, len(nameSet))
	for name := range nameSet {
		globalNames = append(globalNames, name)
	}
	sort.Strings(globalNames)

	incoming := make(map[string]int, len(nodes))
	for _, edge := range wf.Edges {
		source, ok := nodes[edge.Source]
		if !ok {
			return nil, fmt.Errorf("%w: edge references unknown source node %q", ErrInvalidGraph, edge.Source)
		}
		if _, ok := nodes[edge.Target]; !ok {
			return nil, fmt.Errorf("%w: edge references unknown target node %q", ErrInvalidGraph, edge.Target)
		}
		incoming[edge.Target]++
		if edge.Condition == "" {
			source.defaults = append(source.defaults, edge.Target)
			continue
		}
		cond, err := CompileCondition(edge.Condition, globalNames)
		if err != nil {
			return nil, fmt.Errorf("%w: edge %s->%s: %v", ErrInvalidGraph, edge.Source, edge.Target, err)
		}
		source.condEdges = append(source.condEdges, compiledEdge{target: edge.Target, condition: cond})
	}

	var entries []string
	for id := range nodes {
		if incoming[id] == 0 {
			entries = append(entries, id)
		}
	}
	sort.Strings(entries)
	switch len(entries) {
	case 0:
		return nil, fmt.Errorf("%w: no entry node (every node has an incoming edge)", ErrInvalidGraph)
	case 1:
	default:
		return nil, fmt.Errorf("%w: ambiguous entry, multiple nodes without incoming edges: %s",
			ErrInvalidGraph, strings.Join(entries, ", "))
	}
	entry := entries[0]

	plan := &Plan{workflow: wf, entry: entry, nodes: nodes}
	if err := plan.checkAcyclicAndReachable(); err != nil {
		return nil, err
	}
	return plan, nil
}

// checkAcyclicAndReachable rejects cycles (static detection; the runner's
// step ceiling is only a backstop) and nodes unreachable from the entry.
func (p *Plan) checkAcyclicAndReachable() error {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // done
	)
	color := make(map[string]int, len(p.nodes))

	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		cn := p.nodes[id]
		targets := make([]string, 0, len(cn.condEdges)+len(cn.defaults))
		for _, e := range cn.condEdges {
			targets = append(targets, e.target)
		}
		targets = append(targets, cn.defaults...)
		for _, target := range targets {
			switch color[target] {
			case gray:
				return fmt.Errorf("%w: cycle through node %q", ErrInvalidGraph, target)
			case white:
				if err := visit(target); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}
	if err := visit(p.entry); err != nil {
		return err
	}

	var unreachable []string
	for id := range p.nodes {
		if color[id] == white {
			unreachable = append(unreachable, id)
		}
	}
	if len(unreachable) > 0 {
		sort.Strings(unreachable)
		return fmt.Errorf("%w: unreachable nodes: %s", ErrInvalidGraph, strings.Join(unreachable, ", "))
	}
	return nil
}
