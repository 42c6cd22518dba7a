package planner

import (
	"sort"
	"strings"

	"github.com/Ning0612/filesync/internal/domain"
)

// Planner turns a diff summary into an ordered action list
type Planner interface {
	Plan(summary domain.DiffSummary, source, destination domain.ScanResult, dir domain.Direction) *domain.SyncPlan
}

// DefaultPlanner copies new and modified files and deletes destination-only
// files when the direction allows it
type DefaultPlanner struct{}

// NewDefaultPlanner creates a new planner
func NewDefaultPlanner() *DefaultPlanner {
	return &DefaultPlanner{}
}

// Plan implements the Planner interface
func (p *DefaultPlanner) Plan(summary domain.DiffSummary, source, destination domain.ScanResult, dir domain.Direction) *domain.SyncPlan {
	plan := &domain.SyncPlan{
		Direction: dir,
		Actions:   make([]domain.SyncAction, 0, summary.Changes()),
	}

	for _, path := range summary.New {
		src, ok := source[path]
		if !ok {
			continue
		}
		plan.Actions = append(plan.Actions, domain.SyncAction{
			Type:   domain.ActionCopy,
			Path:   path,
			Source: &src,
			Reason: "file does not exist on destination",
		})
	}

	for _, path := range summary.Modified {
		src, ok := source[path]
		if !ok {
			continue
		}
		action := domain.SyncAction{
			Type:   domain.ActionCopy,
			Path:   path,
			Source: &src,
			Reason: "content hash differs",
		}
		if tgt, ok := destination[path]; ok {
			action.Target = &tgt
			if !src.Known() || !tgt.Known() {
				action.Reason = "content hash unknown"
			}
		}
		plan.Actions = append(plan.Actions, action)
	}

	if dir.AllowsDelete() {
		for _, path := range summary.Deleted {
			tgt, ok := destination[path]
			if !ok {
				continue
			}
			plan.Actions = append(plan.Actions, domain.SyncAction{
				Type:   domain.ActionDelete,
				Path:   path,
				Target: &tgt,
				Reason: "file does not exist on source",
			})
		}
	}

	sortActions(plan.Actions)

	calculateStats(plan)
	return plan
}

// sortActions sorts actions to ensure correct execution order
// 1. Copy (shallow->deep, then by name)
// 2. Delete (deep->shallow, then by name)
func sortActions(actions []domain.SyncAction) {
	sort.SliceStable(actions, func(i, j int) bool {
		typeOrderI := actionTypeOrder(actions[i].Type)
		typeOrderJ := actionTypeOrder(actions[j].Type)

		// Sort by type first
		if typeOrderI != typeOrderJ {
			return typeOrderI < typeOrderJ
		}

		depthI := strings.Count(actions[i].Path, "/")
		depthJ := strings.Count(actions[j].Path, "/")

		if depthI != depthJ {
			// For Delete, reverse order (deep first)
			if actions[i].Type == domain.ActionDelete {
				return depthI > depthJ
			}
			return depthI < depthJ
		}

		// Finally sort by path name for determinism
		return actions[i].Path < actions[j].Path
	})
}

// actionTypeOrder returns the sort priority for action types
func actionTypeOrder(t domain.ActionType) int {
	switch t {
	case domain.ActionCopy:
		return 1
	case domain.ActionDelete:
		return 2
	default:
		return 99
	}
}

// calculateStats computes summary statistics for a plan
func calculateStats(plan *domain.SyncPlan) {
	for _, action := range plan.Actions {
		plan.Stats.TotalFiles++
		switch action.Type {
		case domain.ActionCopy:
			plan.Stats.FilesToCopy++
			if action.Source != nil {
				plan.Stats.BytesToCopy += action.Source.Size
			}
		case domain.ActionDelete:
			plan.Stats.FilesToDelete++
		}
	}
}
