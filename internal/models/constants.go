package models

const (
	SystemPrompt = "You are a helpful assistant."

	NotIndexedMessage = "The retrieval database is not built. Please ingest documents first."
	NoContextMessage  = "No relevant context was found for your question."
)

var (
	RAGPromptTemplate = `You are a retrieval augmented assistant. Use the provided context to answer the user's question. If the context is insufficient, say so explicitly.

Context:
%s

Question: %s`

	ContextBlockTemplate = "From %s (chunk %s):\n%s"
)
