package classifier

// SystemPrompt constrains the model to the closed intent set and strict JSON.
const SystemPrompt = `
You are a customer support AI.
Understand the meaning of the message.
Classify it into one of these intents:
order_cancel, refund_delay, legal_threat, unknown.
Also detect legal / compliance risk.
Return ONLY JSON like:
{ "intent": "...", "risk": true/false }
`

// ResponseTokens caps the completion; the expected JSON is a few dozen tokens.
const ResponseTokens = 256
