package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"face-backend/internal/core"
	"face-backend/internal/database"
	"face-backend/pkg/api"
)

func taskToApi(task database.BackgroundTask) (api.Task, error) {
	results := make([]api.ItemOutcome, 0)
	if len(task.Results) > 0 {
		if err := json.Unmarshal(task.Results, &results); err != nil {
			slog.Error("error unmarshalling task results", "task_id", task.Id, "error", err)
			return api.Task{}, CodedErrorf(http.StatusInternalServerError, "error reading task results")
		}
	}

	return api.Task{
		TaskId:         task.Id,
		Kind:           task.Kind,
		Status:         task.Status,
		Progress:       task.Progress,
		TotalItems:     task.TotalItems,
		CompletedItems: task.CompletedItems,
		FailedItems:    task.FailedItems,
		Results:        results,
		ErrorMessage:   task.ErrorMessage.String,
		CreatedAt:      task.CreatedAt,
		UpdatedAt:      task.UpdatedAt,
	}, nil
}

func matchesToApi(matches []core.SearchMatch) []api.Match {
	result := make([]api.Match, len(matches))
	for i, match := range matches {
		var polygon [4]api.Point
		for j, p := range match.FacePolygon {
			polygon[j] = api.Point{X: p.X, Y: p.Y}
		}
		result[i] = api.Match{UserId: match.UserId, Similarity: match.Similarity, FacePolygon: polygon}
	}
	return result
}
