package i18n

// Default returns a catalog seeded with the built-in message tables.
// Companies running in Brazilian locales get the pt-BR set; everything else
// resolves to English.
func Default(defaultLocale string) *Catalog {
	c := NewCatalog(defaultLocale)

	c.Add("en", "event.customer.new", "Customer %s was created")
	c.Add("en", "event.customer.edit", "Customer %s was updated")
	c.Add("en", "event.customer.remove", "Customer %s was removed")
	c.Add("en", "event.sale.new", "New sale %s registered")
	c.Add("en", "import.row.failed", "Row %d: %v")
	c.Add("en", "import.summary", "Import finished: %d of %d records imported, %d failed")
	c.Add("en", "import.error", "The import could not be completed")

	c.Add("pt-BR", "event.customer.new", "Cliente %s foi criado")
	c.Add("pt-BR", "event.customer.edit", "Cliente %s foi atualizado")
	c.Add("pt-BR", "event.customer.remove", "Cliente %s foi removido")
	c.Add("pt-BR", "event.sale.new", "Nova venda %s registrada")
	c.Add("pt-BR", "import.row.failed", "Linha %d: %v")
	c.Add("pt-BR", "import.summary", "Importação concluída: %d de %d registros importados, %d com falha")
	c.Add("pt-BR", "import.error", "A importação não pôde ser concluída")

	return c
}
