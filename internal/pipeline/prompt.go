package pipeline

import (
	"strconv"
	"strings"
)

// answerPromptTemplate is the instruction template for final answer
// synthesis. The refusal strings inside it are part of the observable answer
// contract: clients and tests match on them, so they must stay stable.
const answerPromptTemplate = `Ты — полезный ассистент, который отвечает на вопросы по табличным данным о спросе.
Твоя задача — извлекать точную и полную информацию из предоставленного контекста.

Правила:
1.  **Используй ТОЛЬКО предоставленный контекст.** Не используй свои общие знания.
2.  **Если ответ НЕ содержится в контексте,** так и скажи: "Извините, я не могу ответить на этот вопрос на основе предоставленных данных."
3.  **Отвечай максимально полно и точно.** Если в контексте есть несколько значений для одного запроса, перечисли их все или укажи диапазон, если это уместно.
4.  **При ответе на вопросы, связанные с числовыми значениями** (выручка, штрафы, объемы, процент удовлетворения), старайся явно указывать эти значения из контекста, включая единицы измерения или тип (например, "Общая выручка по заказу составляет 12345.67").
5.  **Если вопрос требует АГРЕГАЦИИ или ВЫЧИСЛЕНИЙ** (например, "средний", "сумма", "максимальный"), и ты не видишь готового агрегированного значения в контексте, отвечай: "Извините, я не могу выполнить вычисления или агрегацию данных. Я могу только извлекать информацию, которая явно присутствует в предоставленном контексте. Для получения среднего значения по Арматура J, я нашел следующие проценты удовлетворения: [перечисли найденные значения]."
6.  **Если вопрос не является запросом информации из контекста** (например, "привет", "как дела?"), отвечай: "Я могу отвечать только на вопросы, связанные с данными о спросе, предоставленными мне."

Контекст:
{context}

Вопрос: {question}
`

// multiQueryTemplate is the instruction template for query expansion. The
// model is asked for newline-separated alternative queries and nothing else.
const multiQueryTemplate = `Ты — эксперт по генерации поисковых запросов. Твоя задача — сгенерировать {count} различных, но семантически похожих поисковых запросов на основе исходного пользовательского запроса. Эти запросы будут использоваться для поиска релевантной информации в векторной базе данных.
Сгенерируй запросы, которые могут раскрыть разные аспекты исходного запроса или использовать синонимы.
Выводи каждый запрос на новой строке. Не добавляй никаких других слов, кроме самих запросов.

Пример:
Пользовательский запрос: Какова выручка для продукта Арматура J?
Сгенерированные запросы:
Выручка Арматура J
Сколько заработали на Арматура J?
Финансовые показатели Арматура J

Пользовательский запрос: {original_query}
Сгенерированные запросы:
`

// contextSeparator joins ranked chunk texts into the grounding context block.
const contextSeparator = "\n\n"

// buildAnswerPrompt substitutes the grounding context and the original
// question into the answer template.
func buildAnswerPrompt(contextTexts []string, question string) string {
	r := strings.NewReplacer(
		"{context}", strings.Join(contextTexts, contextSeparator),
		"{question}", question,
	)
	return r.Replace(answerPromptTemplate)
}

// buildExpandPrompt substitutes the alternative-query count and the original
// question into the expansion template.
func buildExpandPrompt(question string, count int) string {
	r := strings.NewReplacer(
		"{count}", strconv.Itoa(count),
		"{original_query}", question,
	)
	return r.Replace(multiQueryTemplate)
}
