package board

import (
	"reflect"

	"choreboard/domain"
)

// Merge reconciles a conflicting save: remote is the backend's current
// board, local the in-flight edit, base the last board both sides agreed on.
// Each id-keyed collection merges independently with delete-wins over
// concurrent edits and a local tie-break when both sides changed the same
// item. Settings merge as a whole: local wins if it differs from base.
// The merged board carries remote's version token so the retry can target
// it.
func Merge(remote, local, base domain.Board) domain.Board {
	merged := domain.Board{
		People: mergeCollection(remote.People, local.People, base.People,
			func(p domain.Person) string { return p.ID }),
		Tasks: mergeCollection(remote.Tasks, local.Tasks, base.Tasks,
			func(t domain.Task) string { return t.ID }),
		Templates: mergeCollection(remote.Templates, local.Templates, base.Templates,
			func(t domain.Template) string { return t.ID }),
		UpdatedAt: remote.UpdatedAt,
	}

	if reflect.DeepEqual(local.Settings, base.Settings) {
		merged.Settings = remote.Settings
	} else {
		merged.Settings = local.Settings
	}
	return merged
}

// mergeCollection applies the per-item policy over the union of ids. Result
// order follows remote then local-only additions, keeping the outcome
// deterministic.
func mergeCollection[T any](remote, local, base []T, id func(T) string) []T {
	remoteByID := indexByID(remote, id)
	localByID := indexByID(local, id)
	baseByID := indexByID(base, id)

	out := make([]T, 0, len(remote)+len(local))
	emitted := make(map[string]struct{}, len(remote)+len(local))

	emit := func(item T) {
		key := id(item)
		if _, done := emitted[key]; done {
			return
		}
		emitted[key] = struct{}{}
		out = append(out, item)
	}

	for _, remoteItem := range remote {
		key := id(remoteItem)
		localItem, inLocal := localByID[key]
		baseItem, inBase := baseByID[key]

		if inBase && !inLocal {
			// Deleted locally while remote kept it: delete wins.
			continue
		}
		if !inLocal {
			// New remotely.
			emit(remoteItem)
			continue
		}
		if !inBase {
			// Created independently on both sides: the in-flight edit wins.
			emit(localItem)
			continue
		}

		localChanged := !reflect.DeepEqual(localItem, baseItem)
		remoteChanged := !reflect.DeepEqual(remoteItem, baseItem)
		switch {
		case localChanged && !remoteChanged:
			emit(localItem)
		case remoteChanged && !localChanged:
			emit(remoteItem)
		default:
			// Both changed (true conflict) or neither: local wins.
			emit(localItem)
		}
	}

	for _, localItem := range local {
		key := id(localItem)
		if _, done := emitted[key]; done {
			continue
		}
		if _, inRemote := remoteByID[key]; inRemote {
			continue
		}
		if _, inBase := baseByID[key]; inBase {
			// Deleted remotely while local kept or edited it: delete wins.
			continue
		}
		// New locally, not yet synced.
		emit(localItem)
	}

	return out
}

func indexByID[T any](items []T, id func(T) string) map[string]T {
	m := make(map[string]T, len(items))
	for _, item := range items {
		m[id(item)] = item
	}
	return m
}

// ConflictingIDs lists ids changed on both sides relative to base, for
// logging when the local tie-break silently discards remote edits.
func ConflictingIDs(remote, local, base domain.Board) []string {
	ids := []string{}
	ids = append(ids, conflictingIn(remote.People, local.People, base.People,
		func(p domain.Person) string { return p.ID })...)
	ids = append(ids, conflictingIn(remote.Tasks, local.Tasks, base.Tasks,
		func(t domain.Task) string { return t.ID })...)
	ids = append(ids, conflictingIn(remote.Templates, local.Templates, base.Templates,
		func(t domain.Template) string { return t.ID })...)
	return ids
}

func conflictingIn[T any](remote, local, base []T, id func(T) string) []string {
	remoteByID := indexByID(remote, id)
	localByID := indexByID(local, id)

	ids := []string{}
	for _, baseItem := range base {
		key := id(baseItem)
		remoteItem, inRemote := remoteByID[key]
		localItem, inLocal := localByID[key]
		if !inRemote || !inLocal {
			continue
		}
		if !reflect.DeepEqual(remoteItem, baseItem) && !reflect.DeepEqual(localItem, baseItem) &&
			!reflect.DeepEqual(remoteItem, localItem) {
			ids = append(ids, key)
		}
	}
	return ids
}
