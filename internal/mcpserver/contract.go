package mcpserver

// ChainFormatContract describes the chain file format that LLM consumers
// should follow when reading or editing chain files.
const ChainFormatContract = `# Chain File Format Contract

A chain file describes one release: file-wide properties followed by one
section per project. Files end with ` + "`" + `.properties` + "`" + ` or ` + "`" + `.chain` + "`" + `.

## Structure

` + "```" + `properties
# free comment
[global]
version=2.0.0
version.binary=20000
description=Spring release
issue.id=REL-42
recipients=a@example.com,b@example.com

[global.devs]
devs.version=2.1.0-SNAPSHOT
devs.version.binary=20100

[core]
mode=tag
tag=20000
tests.unit=true

[web]
mode=branch
branch=develop

#[legacy]
#mode=branch
#branch=develop
` + "```" + `

## Rules

1. ` + "`" + `[name]` + "`" + ` opens a project section. ` + "`" + `#[name]` + "`" + ` opens a commented (disabled)
   section; its property lines are written as ` + "`" + `#key=value` + "`" + `.
2. ` + "`" + `[global]` + "`" + ` and ` + "`" + `[global.devs]` + "`" + ` both feed the single global block.
3. Properties are ` + "`" + `key=value` + "`" + `; key and value are trimmed. Only ` + "`" + `=` + "`" + ` separates.
4. Lines starting with ` + "`" + `#` + "`" + ` or ` + "`" + `!` + "`" + ` inside active sections are comments.
5. A property before any section header is an error.
6. ` + "`" + `mode` + "`" + ` is one of ` + "`" + `branch` + "`" + `, ` + "`" + `tag` + "`" + `, ` + "`" + `fork` + "`" + `. A project sets either
   ` + "`" + `branch` + "`" + ` or ` + "`" + `tag` + "`" + `, never both. ` + "`" + `fork` + "`" + ` mode also needs a ` + "`" + `branch` + "`" + `.
7. ` + "`" + `version.binary` + "`" + ` in the global block is the current version of the chain.
   Rebasing rewrites it together with every project's ` + "`" + `tag` + "`" + ` or version key.
8. Encoding is UTF-8. Edits preserve the layout: unchanged lines are written back verbatim.

## Tools

- ` + "`" + `validate_chain` + "`" + ` runs the configured rule set; ` + "`" + `auto_fix` + "`" + ` repairs fixable issues.
- ` + "`" + `analyze_versions` + "`" + ` shows the current version and per-project versions.
- ` + "`" + `rebase_chain` + "`" + ` moves the chain (or selected projects) to a new version.
- ` + "`" + `list_rules` + "`" + ` lists the rule set and any broken rule configuration.
`
