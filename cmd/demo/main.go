// cmd/demo/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/aulanotes/AulaNotes/internal/llm/providers/mock"
	"github.com/aulanotes/AulaNotes/internal/models"
	"github.com/aulanotes/AulaNotes/internal/services"
	"github.com/aulanotes/AulaNotes/internal/storage"
)

// canned model answer, wrapped in a fence the way chat models like to
const cannedAnswer = "```json\n" + `{
  "blocks": [
    {"id": "blk_intro", "kind": "heading1", "text": "Matrices y determinantes"},
    {"id": "blk_p1", "kind": "paragraph", "text": "Hoy veremos matrices y determinantes con ejemplos."},
    {"id": "blk_def", "kind": "concept", "term": "Matriz", "definition": "Arreglo rectangular de numeros ordenados en filas y columnas.", "examples": ["Una matriz 2x2 tiene cuatro entradas."]},
    {"id": "blk_list", "kind": "bullet_list", "items": ["Suma de matrices", "Producto de matrices", "Determinante"]}
  ]
}` + "\n```"

func main() {
	fmt.Println("AulaNotes pipeline demo")
	fmt.Println("=======================")

	provider := &mock.Provider{}
	provider.QueueResponse(cannedAnswer)

	llmService := services.NewLLMServiceWithProvider("mock", provider)

	dataDir, err := os.MkdirTemp("", "aulanotes_demo_*")
	if err != nil {
		log.Fatalf("failed to create demo data dir: %v", err)
	}
	defer os.RemoveAll(dataDir)

	fileStorage, err := storage.NewFileStorage(dataDir)
	if err != nil {
		log.Fatalf("failed to initialize storage: %v", err)
	}
	store := storage.NewDocumentStore(fileStorage)

	validator := services.NewValidateService()
	docService := services.NewDocumentService(
		services.NewStructureService(llmService, validator),
		services.NewAlignService(),
		validator,
		services.NewMutationService(validator),
		store,
		services.NewProgressService(),
	)

	req := services.ProcessRequest{
		Meta: models.DocumentMeta{
			Course:   "Algebra Lineal",
			Subject:  "Matrices",
			Language: "es",
		},
		Segments: []models.Segment{
			{Index: 0, Start: 0, End: 4, Text: "Hoy veremos matrices y determinantes con ejemplos."},
			{Index: 1, Start: 4, End: 11, Text: "Una matriz es un arreglo rectangular de numeros ordenados en filas y columnas."},
			{Index: 2, Start: 11, End: 16, Text: "Veremos suma de matrices, producto de matrices y determinante."},
		},
	}

	result, err := docService.ProcessTranscript(context.Background(), req)
	if err != nil {
		log.Fatalf("pipeline failed: %v", err)
	}

	fmt.Printf("\nstructured document %s with %d blocks\n", result.Document.DocID, len(result.Document.Blocks))
	for _, warning := range result.Warnings {
		fmt.Printf("warning: %s (%s)\n", warning.Message, warning.Code)
	}

	printDocument(result.Document)

	// fix a typo through the mutation engine
	edited, err := docService.EditBlock(result.Document.DocID, "blk_p1",
		models.Path{models.FieldSegment("text")},
		"Hoy veremos matrices y determinantes, con ejemplos resueltos.")
	if err != nil {
		log.Fatalf("edit failed: %v", err)
	}

	fmt.Println("\nafter editing blk_p1:")
	printDocument(edited)
}

func printDocument(doc *models.Document) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.Fatalf("failed to render document: %v", err)
	}
	fmt.Println(string(data))
}
