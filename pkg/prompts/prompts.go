// Package prompts builds every prompt the agent sends to the LLM. The
// Spanish text and the response markers are the wire contract with the
// model: the parser in pkg/agent depends on them, so change both together.
package prompts

import (
	"fmt"
	"strings"
)

// Response markers the LLM is instructed to emit.
const (
	// RetryMarker prefixes a curation response that asks the user for
	// clarification instead of producing a curated question.
	RetryMarker = "[RETRY]"

	// DescriptionMarker precedes the human-readable description in a
	// SQL-generation response.
	DescriptionMarker = "**Descripción de los datos:**"
)

// GeneralSystem is the system message for conversational (non-SQL) turns.
// The assistant must refuse questions unrelated to the ANCAP system and
// must never invent data values it cannot query.
const GeneralSystem = `Sos una asistente de un sistema de ANCAP Uruguay,
tu objetivo es ayudar al usuario a consultar la base de datos de ANCAP, esta esta relacionada con el sistema de facturacion y entregas.
Deberas interpretar sus consultas en lenguaje natural.
NO CONTESTES OTRA COSA QUE NO SE RELACIONE CON EL SISTEMA DE ANCAP.
NO inventes valores de datos: si no ejecutaste una consulta, no afirmes cifras ni resultados.`

// TitleSystem is the system message for conversation title summarization.
const TitleSystem = `Sos un agente especializado en resumir consultas de usuario a frases breves,
estas van a ser usadas como resumen de toda una conversacion.
No agregues puntos al final de la frase.`

// SchemaFormattingSystem instructs the model to rewrite a raw
// INFORMATION_SCHEMA dump into the DDL-style schema text the prompts use.
const SchemaFormattingSystem = `Eres un experto en bases de datos. Recibirás un esquema en formato JSON
y un ejemplo del formato de salida esperado. Reescribe el esquema JSON con el mismo formato que el
ejemplo: sentencias CREATE TABLE comentadas, una por tabla, indicando claves primarias y foráneas.
Responde SOLO con el esquema formateado.`

// Intent builds the intent-classification prompt. The model must answer
// with exactly "SQL" or "GENERAL". The rendered conversation history lets
// the classifier resolve elliptical follow-ups ("y en mayo?") that only
// make sense as data questions in context.
func Intent(history, query string) string {
	return fmt.Sprintf(
		"Given the user input below, answer with only 'SQL' or 'GENERAL'. Use the conversation so far to interpret follow-up questions.\n\nConversación previa:\n%s\n\nInput: %s\nType:",
		history, query,
	)
}

// Curation builds the data-dictionary curation prompt. The model answers
// with either a schema-aware curated question or a clarification request
// prefixed with the retry marker.
func Curation(dataDictionary, query string) string {
	var b strings.Builder
	b.WriteString("Eres un experto en diccionario de datos, usa el diccionario de datos para traducir la pregunta del usuario a una ")
	b.WriteString("pregunta curada con información específica sobre las tablas a consultar. Responde SOLO con la pregunta curada o una solicitud de más ")
	b.WriteString("información comenzando con " + RetryMarker + ".\n\n")
	b.WriteString(dataDictionary)
	b.WriteString("\n\nInput: ")
	b.WriteString(query)
	b.WriteString("\nType:")
	return b.String()
}

// SQLGenerationSystem builds the system message for SQL generation,
// embedding the warehouse schema.
func SQLGenerationSystem(schema string) string {
	return fmt.Sprintf(`Eres un amigable experto SQL con acceso a un esquema de base de datos.
Tienes acceso a las siguientes tablas y herramientas:

%s

El usuario te proporcionará una consulta en lenguaje natural.`, schema)
}

// SQLGeneration builds the user prompt for SQL generation from the original
// input and the curated question. The model must emit a fenced sql block
// plus a description introduced by the description marker.
func SQLGeneration(input, curatedQuery string) string {
	return fmt.Sprintf(`%s

También tienes la consulta enriquecida con nombres de tablas para ayudarte a generar el código SQL: %s.
Debes generar una consulta SQL que responda a la consulta del usuario, NO debes preguntarle al usuario.
Devuelve la consulta SQL dentro de un bloque de código `+"```sql ... ```"+`.
Tambien es obligatorio que agregues un mensaje %s y a continuacion agregues una descripción breve de los datos que va a poder ver en la grafica. Intenta explicar de forma detallada pero que le permita a una persona sin conocimientos de SQL entender que datos va a ver en la grafica.
El contexto de los datos es sobre una refinadora de petróleo ANCAP`, input, curatedQuery, DescriptionMarker)
}

// SchemaFormatting builds the user prompt for live schema formatting.
func SchemaFormatting(schemaJSON, example string) string {
	return fmt.Sprintf("Esquema JSON:\n%s\n\nEjemplo del formato esperado:\n%s", schemaJSON, example)
}
