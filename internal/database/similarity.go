package database

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type Match struct {
	UserId     uuid.UUID
	Similarity float64
}

// FaceMatcher finds the registered users whose face embeddings are most
// similar to the query embedding. Matches are ordered by descending cosine
// similarity; an empty result is not an error.
type FaceMatcher interface {
	MatchFaces(ctx context.Context, embedding []float32, threshold float64, topK int) ([]Match, error)
}

// NewFaceMatcher picks the pgvector-backed matcher when the database supports
// it and falls back to the in-process matcher otherwise (sqlite deployments).
func NewFaceMatcher(db *gorm.DB) FaceMatcher {
	if db.Dialector.Name() == "postgres" {
		return &PgVectorMatcher{db: db}
	}
	return &ExactMatcher{db: db}
}

type PgVectorMatcher struct {
	db *gorm.DB
}

var _ FaceMatcher = (*PgVectorMatcher)(nil)

func (m *PgVectorMatcher) MatchFaces(ctx context.Context, embedding []float32, threshold float64, topK int) ([]Match, error) {
	vec := pgvector.NewVector(embedding)

	var matches []Match
	err := m.db.WithContext(ctx).Raw(`
		SELECT user_id, 1 - (embedding <=> ?::vector) AS similarity
		FROM user_faces
		WHERE 1 - (embedding <=> ?::vector) >= ?
		ORDER BY embedding <=> ?::vector
		LIMIT ?`,
		vec, vec, threshold, vec, topK,
	).Scan(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("error querying similar faces: %w", err)
	}

	return matches, nil
}

// ExactMatcher computes cosine similarity over all registered faces in Go. It
// serves databases without vector indexes; registered face counts are small
// enough (one row per user) that a full scan is acceptable there.
type ExactMatcher struct {
	db *gorm.DB
}

var _ FaceMatcher = (*ExactMatcher)(nil)

func (m *ExactMatcher) MatchFaces(ctx context.Context, embedding []float32, threshold float64, topK int) ([]Match, error) {
	var faces []UserFace
	if err := m.db.WithContext(ctx).Find(&faces).Error; err != nil {
		return nil, fmt.Errorf("error loading registered faces: %w", err)
	}

	var matches []Match
	for _, face := range faces {
		similarity := CosineSimilarity(embedding, face.Embedding.Slice())
		if similarity >= threshold {
			matches = append(matches, Match{UserId: face.UserId, Similarity: similarity})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}

	return matches, nil
}

func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
