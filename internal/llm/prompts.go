package llm

// AnswerPromptTemplate instructs the model to answer strictly from the
// transcript context. Placeholders: %s = context, %s = question.
const AnswerPromptTemplate = `Com base no texto fornecido abaixo como contexto, responda a pergunta de forma clara e precisa em português do Brasil.

CONTEXTO:
%s

PERGUNTA:
%s

INSTRUÇÕES:
- Use apenas informações contidas no contexto;
- Se a resposta não for encontrada no contexto, responda que não possui informações suficientes;
- Seja objetivo;
- Mantenha um tom educativo e profissional;
- Cite trechos relevantes do contexto se apropriado.`
