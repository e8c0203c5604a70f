package server

import (
	"io"

	"github.com/gofiber/fiber/v3"

	"github.com/docuchat/docuchat/internal/ingest"
	"github.com/docuchat/docuchat/internal/models"
)

// handleUpload indexes uploaded documents into the retrieval store.
//
// With a non-empty store and no strategy the caller gets an advisory
// response describing the clean and append follow-ups instead of a
// guess on their behalf.
func (s *Server) handleUpload(c fiber.Ctx) error {
	strategy, err := models.ParseStrategy(c.Query("strategy"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid strategy. Choose from 'clean' or 'append'.",
		})
	}

	count, err := s.store.Count(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	hasEmbeddings := count > 0

	uploadURL := c.BaseURL() + c.Path()
	cleanURL := uploadURL + "?strategy=clean"
	appendURL := uploadURL + "?strategy=append"

	if hasEmbeddings && strategy == models.StrategyUnset {
		return c.JSON(fiber.Map{
			"status": "embeddings_exist",
			"detail": "Embeddings have already been generated. Choose whether to clean the existing embeddings and start over, or add new documents to the current store.",
			"actions": fiber.Map{
				"clean": fiber.Map{
					"description": "Remove all existing embeddings and rebuild from new uploads.",
					"url":         cleanURL,
				},
				"append": fiber.Map{
					"description": "Keep existing embeddings and append new documents.",
					"url":         appendURL,
				},
			},
		})
	}

	files, err := s.uploadedFiles(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if len(files) == 0 && strategy != models.StrategyClean {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one document must be uploaded to generate embeddings.",
		})
	}

	result, err := s.ingest.Ingest(c.Context(), files, strategy)
	if err != nil {
		payload := fiber.Map{
			"status": "error",
			"error":  err.Error(),
		}
		// A partial result tells the caller which files were affected and
		// what still made it into the store.
		if result != nil {
			payload["chunks_indexed"] = result.ChunksIndexed
			payload["failed_files"] = result.FailedFiles
			payload["skipped_files"] = result.SkippedFiles
		}
		return c.Status(fiber.StatusInternalServerError).JSON(payload)
	}

	if strategy == models.StrategyClean && len(files) == 0 {
		return c.JSON(fiber.Map{
			"status":     "cleared",
			"detail":     "Existing embeddings have been removed. Upload documents to rebuild the retrieval database.",
			"upload_url": uploadURL,
		})
	}

	detail := "Documents were added to an empty retrieval store."
	switch {
	case strategy == models.StrategyClean:
		detail = "Existing embeddings were cleaned and the uploaded documents were indexed into the fresh retrieval store."
	case strategy == models.StrategyAppend && hasEmbeddings:
		detail = "Uploaded documents were appended to the existing embeddings without clearing the store."
	}

	return c.JSON(fiber.Map{
		"status":         "success",
		"detail":         detail,
		"chunks_indexed": result.ChunksIndexed,
		"skipped_files":  result.SkippedFiles,
		"append_url":     appendURL,
		"clean_url":      cleanURL,
	})
}

// uploadedFiles reads the multipart payloads into memory for ingestion.
// A request without a multipart body simply has zero files.
func (s *Server) uploadedFiles(c fiber.Ctx) ([]ingest.File, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil
	}

	var files []ingest.File
	for _, header := range form.File["files"] {
		f, err := header.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, ingest.File{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}
